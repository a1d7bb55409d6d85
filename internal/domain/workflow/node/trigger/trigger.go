package trigger

import (
	"context"
	"fmt"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
)

// TriggerNode 触发器节点。遍历时不产生副作用，只把触发数据作为输出
type TriggerNode struct {
	*node.BaseNode
}

func init() {
	node.Register(types.NodeTypeTrigger, NewTriggerNode)
}

// NewTriggerNode 创建触发器节点
func NewTriggerNode(n types.Node, _ node.Dependencies) (node.Node, error) {
	return &TriggerNode{BaseNode: node.NewBaseNode(n, title(n.Data))}, nil
}

func title(d types.NodeData) string {
	switch d.TriggerType {
	case types.TriggerTypeKeyword:
		return fmt.Sprintf("keyword %q", d.Keyword)
	case types.TriggerTypePrompt:
		return fmt.Sprintf("prompt %q", d.Prompt)
	case types.TriggerTypeTimer:
		if d.Seconds != nil {
			return fmt.Sprintf("timer %gs", *d.Seconds)
		}
		return "timer"
	default:
		return string(d.TriggerType)
	}
}

// Run 执行触发器节点
func (n *TriggerNode) Run(ctx context.Context) (*node.NodeRunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := map[string]any{}
	if tc, ok := node.TriggerContextFrom(ctx); ok {
		outputs = tc.Snapshot()
	}
	return node.SucceededResult(outputs), nil
}
