package node

import (
	types "haptix/internal/domain/workflow/model"
)

// BaseNode 提供 Node 接口的公共实现基础
type BaseNode struct {
	id       string
	nodeType types.NodeType
	title    string
	data     types.NodeData
}

// NewBaseNode 创建 BaseNode
func NewBaseNode(n types.Node, title string) *BaseNode {
	return &BaseNode{
		id:       n.ID,
		nodeType: n.Type,
		title:    title,
		data:     n.Clone().Data,
	}
}

func (n *BaseNode) ID() string           { return n.id }
func (n *BaseNode) Type() types.NodeType { return n.nodeType }
func (n *BaseNode) Title() string        { return n.title }

// Data 返回节点数据
func (n *BaseNode) Data() types.NodeData { return n.data }
