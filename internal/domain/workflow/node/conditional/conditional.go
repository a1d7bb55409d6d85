package conditional

import (
	"context"
	"fmt"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
)

// ConditionalNode 比较触发上下文中的参数与阈值，选择 true/false 分支
type ConditionalNode struct {
	*node.BaseNode
}

func init() {
	node.Register(types.NodeTypeConditional, NewConditionalNode)
}

// NewConditionalNode 创建条件节点
func NewConditionalNode(n types.Node, _ node.Dependencies) (node.Node, error) {
	title := fmt.Sprintf("%s %s %s", n.Data.Parameter, n.Data.Operator, n.Data.CompareValue)
	return &ConditionalNode{BaseNode: node.NewBaseNode(n, title)}, nil
}

// Run 执行条件节点
func (n *ConditionalNode) Run(ctx context.Context) (*node.NodeRunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := n.Data()
	var value any
	if tc, ok := node.TriggerContextFrom(ctx); ok {
		value, _ = tc.Get(data.Parameter)
	}

	result := Evaluate(value, data.Operator, data.CompareValue)
	return &node.NodeRunResult{
		Status: node.StatusSucceeded,
		Branch: types.BranchFor(result),
		Outputs: map[string]any{
			"parameter": data.Parameter,
			"value":     value,
			"result":    result,
		},
	}, nil
}
