package graph

import (
	types "haptix/internal/domain/workflow/model"
)

// Parameter 条件节点可引用的参数
type Parameter struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AncestorTrigger 沿"第一条入边"向上回溯，返回最近的触发器祖先
// 无入边、父节点缺失或出现环时返回 false
func AncestorTrigger(nodes []types.Node, edges []types.Edge, nodeID string) (types.Node, bool) {
	visited := make(map[string]bool)
	current := nodeID

	for {
		if visited[current] {
			return types.Node{}, false
		}
		visited[current] = true

		var incoming *types.Edge
		for i := range edges {
			if edges[i].Target == current {
				incoming = &edges[i]
				break
			}
		}
		if incoming == nil {
			return types.Node{}, false
		}

		parent, ok := types.FindNode(nodes, incoming.Source)
		if !ok {
			return types.Node{}, false
		}
		if parent.Type == types.NodeTypeTrigger {
			return parent, true
		}
		current = parent.ID
	}
}

// AvailableParameters 返回节点可用的参数列表
func AvailableParameters(nodes []types.Node, edges []types.Edge, nodeID string) []Parameter {
	if _, ok := AncestorTrigger(nodes, edges, nodeID); !ok {
		return []Parameter{}
	}
	return []Parameter{{ID: "seconds", Label: "Seconds"}}
}
