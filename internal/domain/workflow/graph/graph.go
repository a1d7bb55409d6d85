package graph

import (
	types "haptix/internal/domain/workflow/model"
)

// Graph 只读的图索引，保留节点和边的插入顺序，供遍历和分析使用
type Graph struct {
	Nodes    map[string]types.Node // node_id -> Node
	Edges    map[string]types.Edge // edge_id -> Edge
	InEdges  map[string][]string   // node_id -> []edge_id (入边)
	OutEdges map[string][]string   // node_id -> []edge_id (出边)

	nodeOrder []string
	startID   string
}

// New 从图配置构建索引。不做校验：悬空边会保留在邻接表中，由调用方决定如何处理
func New(config *types.GraphConfig) *Graph {
	g := &Graph{
		Nodes:    make(map[string]types.Node, len(config.Nodes)),
		Edges:    make(map[string]types.Edge, len(config.Edges)),
		InEdges:  make(map[string][]string),
		OutEdges: make(map[string][]string),
	}

	for _, n := range config.Nodes {
		if _, dup := g.Nodes[n.ID]; dup {
			continue
		}
		g.Nodes[n.ID] = n.Clone()
		g.nodeOrder = append(g.nodeOrder, n.ID)
		if g.startID == "" && n.IsStart() {
			g.startID = n.ID
		}
	}

	for _, e := range config.Edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		if _, dup := g.Edges[e.ID]; dup {
			continue
		}
		g.Edges[e.ID] = e
		g.OutEdges[e.Source] = append(g.OutEdges[e.Source], e.ID)
		g.InEdges[e.Target] = append(g.InEdges[e.Target], e.ID)
	}

	return g
}

// Start 返回起始触发器
func (g *Graph) Start() (types.Node, bool) {
	if g.startID == "" {
		return types.Node{}, false
	}
	return g.Nodes[g.startID], true
}

// Node 按 ID 获取节点
func (g *Graph) Node(id string) (types.Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// OrderedNodes 按插入顺序返回所有节点
func (g *Graph) OrderedNodes() []types.Node {
	out := make([]types.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.Nodes[id])
	}
	return out
}

// GetOutgoingEdges 获取节点的所有出边（按插入顺序）
func (g *Graph) GetOutgoingEdges(nodeID string) []types.Edge {
	edgeIDs := g.OutEdges[nodeID]
	result := make([]types.Edge, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		if edge, ok := g.Edges[eid]; ok {
			result = append(result, edge)
		}
	}
	return result
}

// GetIncomingEdges 获取节点的所有入边（按插入顺序）
func (g *Graph) GetIncomingEdges(nodeID string) []types.Edge {
	edgeIDs := g.InEdges[nodeID]
	result := make([]types.Edge, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		if edge, ok := g.Edges[eid]; ok {
			result = append(result, edge)
		}
	}
	return result
}

// BranchEdge 返回条件节点对应分支的出边
func (g *Graph) BranchEdge(nodeID string, handle types.BranchHandle) (types.Edge, bool) {
	for _, e := range g.GetOutgoingEdges(nodeID) {
		if e.SourceHandle == string(handle) {
			return e, true
		}
	}
	return types.Edge{}, false
}
