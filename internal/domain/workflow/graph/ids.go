package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator 节点/边 ID 分配器，由 Store 实例独占持有
type IDGenerator interface {
	NextNodeID() string
	NextEdgeID() string
	// Reset 在图被重置时调用
	Reset()
}

// SequenceIDs 单调递增的 ID 分配器：node_0, node_1 ... / edge_0, edge_1 ...
type SequenceIDs struct {
	mu    sync.Mutex
	nodes int
	edges int
}

// NewSequenceIDs 创建递增 ID 分配器
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

func (g *SequenceIDs) NextNodeID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("node_%d", g.nodes)
	g.nodes++
	return id
}

func (g *SequenceIDs) NextEdgeID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("edge_%d", g.edges)
	g.edges++
	return id
}

func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = 0
	g.edges = 0
}

// UUIDIDs 基于 UUID 的 ID 分配器，适合多个编辑器共享同一命名空间的场景
type UUIDIDs struct{}

func (UUIDIDs) NextNodeID() string { return "node_" + uuid.New().String() }
func (UUIDIDs) NextEdgeID() string { return "edge_" + uuid.New().String() }
func (UUIDIDs) Reset()             {}
