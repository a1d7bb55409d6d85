package action

import (
	"context"
	"fmt"
	"time"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
	"haptix/internal/domain/workflow/port"
)

// DefaultWaitSeconds wait 动作未配置秒数时的默认等待
const DefaultWaitSeconds = 15

// ActionNode 刺激动作节点。vibe/zap/beep 调用刺激后端，wait 只在本地等待
type ActionNode struct {
	*node.BaseNode
	stimulus port.StimulusSender
}

func init() {
	node.Register(types.NodeTypeAction, NewActionNode)
}

// NewActionNode 创建动作节点
func NewActionNode(n types.Node, deps node.Dependencies) (node.Node, error) {
	data := n.Data
	title := string(data.ActionType)
	if data.ActionType.IsStimulus() {
		title = fmt.Sprintf("%s · %s", data.ActionType, stimulusType(data))
	}
	return &ActionNode{
		BaseNode: node.NewBaseNode(n, title),
		stimulus: deps.Stimulus,
	}, nil
}

// Run 执行动作节点。刺激失败不会中断遍历，以失败结果返回
func (n *ActionNode) Run(ctx context.Context) (*node.NodeRunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := n.Data()
	if data.ActionType == types.ActionTypeWait {
		return n.wait(ctx, data)
	}
	if !data.ActionType.IsStimulus() {
		return node.FailedResult(fmt.Sprintf("unsupported action type %q", data.ActionType)), nil
	}
	if n.stimulus == nil {
		return node.FailedResult("no stimulus backend configured"), nil
	}

	s := port.Stimulus{Mode: data.ActionType, Type: stimulusType(data)}
	if data.Value != nil {
		v := int(*data.Value)
		s.Value = &v
	}

	// 已发出的刺激请求不随遍历取消而撤回
	if err := n.stimulus.Trigger(context.WithoutCancel(ctx), s); err != nil {
		return node.FailedResult(err.Error()), nil
	}

	return node.SucceededResult(map[string]any{
		"mode": string(s.Mode),
		"type": string(s.Type),
	}), nil
}

func (n *ActionNode) wait(ctx context.Context, data types.NodeData) (*node.NodeRunResult, error) {
	seconds := float64(DefaultWaitSeconds)
	if data.Seconds != nil {
		seconds = *data.Seconds
	}
	d := time.Duration(seconds * float64(time.Second))

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return node.SucceededResult(map[string]any{"seconds": seconds}), nil
}

func stimulusType(data types.NodeData) types.StimulusType {
	if data.StimulusType == "" {
		return types.DefaultStimulusType
	}
	return data.StimulusType
}
