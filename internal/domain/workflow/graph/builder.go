package graph

import (
	"fmt"

	types "haptix/internal/domain/workflow/model"
)

// Builder 图配置的流式构建器，主要用于编程式构建和测试
type Builder struct {
	nodes     []types.Node
	nodesMap  map[string]bool
	edges     []types.Edge
	edgeCount int
}

// NewBuilder 创建图构建器
func NewBuilder() *Builder {
	return &Builder{
		nodesMap: make(map[string]bool),
	}
}

// AddStart 注册起始触发器（必须且仅调用一次，且最先调用）
func (b *Builder) AddStart(id string, data types.NodeData) *Builder {
	if len(b.nodes) > 0 {
		panic("start node has already been added")
	}
	data.IsStart = true
	if data.TriggerType == "" {
		data.TriggerType = types.TriggerTypeTimer
	}
	b.register(types.Node{ID: id, Type: types.NodeTypeTrigger, Data: data})
	return b
}

// AddNode 添加节点并从指定前驱节点连接
// 如果 fromNodeID 为空，默认从最后添加的节点连接
func (b *Builder) AddNode(id string, nt types.NodeType, data types.NodeData, fromNodeID string, sourceHandle string) *Builder {
	if len(b.nodes) == 0 {
		panic("start node must be added before adding other nodes")
	}

	predecessorID := fromNodeID
	if predecessorID == "" {
		predecessorID = b.nodes[len(b.nodes)-1].ID
	}
	if !b.nodesMap[predecessorID] {
		panic(fmt.Sprintf("predecessor node '%s' not found", predecessorID))
	}

	b.register(types.Node{ID: id, Type: nt, Data: data})
	b.addEdge(predecessorID, id, sourceHandle)
	return b
}

// AddIsolated 添加一个不连接任何节点的节点
func (b *Builder) AddIsolated(id string, nt types.NodeType, data types.NodeData) *Builder {
	b.register(types.Node{ID: id, Type: nt, Data: data})
	return b
}

// Connect 连接两个已存在的节点（不添加新节点）
func (b *Builder) Connect(tail, head, sourceHandle string) *Builder {
	if !b.nodesMap[tail] {
		panic(fmt.Sprintf("tail node '%s' not found", tail))
	}
	if !b.nodesMap[head] {
		panic(fmt.Sprintf("head node '%s' not found", head))
	}
	b.addEdge(tail, head, sourceHandle)
	return b
}

// Build 返回图配置（深拷贝）
func (b *Builder) Build() *types.GraphConfig {
	return &types.GraphConfig{
		Nodes: types.CloneNodes(b.nodes),
		Edges: types.CloneEdges(b.edges),
	}
}

func (b *Builder) register(n types.Node) {
	if b.nodesMap[n.ID] {
		panic(fmt.Sprintf("node with id '%s' already exists", n.ID))
	}
	b.nodesMap[n.ID] = true
	b.nodes = append(b.nodes, n)
}

func (b *Builder) addEdge(tail, head, sourceHandle string) {
	edgeID := fmt.Sprintf("edge_%d", b.edgeCount)
	b.edgeCount++
	b.edges = append(b.edges, types.Edge{
		ID:           edgeID,
		Source:       tail,
		Target:       head,
		SourceHandle: sourceHandle,
		Label:        sourceHandle,
	})
}
