package graph

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	types "haptix/internal/domain/workflow/model"
	applog "haptix/internal/platform/log"
)

const (
	// nodeSpacingX 新节点相对最右侧节点的水平间距
	nodeSpacingX = 300
	// jitterRangeY 新节点纵向随机偏移范围 [0, jitterRangeY)
	jitterRangeY = 100
	// defaultTimerSeconds 定时触发器默认秒数
	defaultTimerSeconds = 5
	// defaultActionValue 动作节点默认强度
	defaultActionValue = 50
)

// Store 编辑器持有的工作流图。并发安全；始终包含且仅包含一个起始触发器
type Store struct {
	mu      sync.RWMutex
	ids     IDGenerator
	jitter  func() float64
	nodes   []types.Node
	edges   []types.Edge
	startID string
	logger  *slog.Logger
}

// Option Store 构造选项
type Option func(*Store)

// WithIDGenerator 指定 ID 分配器（默认 SequenceIDs）
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithJitter 指定纵向偏移函数，返回值应在 [0, 100) 内
func WithJitter(f func() float64) Option {
	return func(s *Store) {
		if f != nil {
			s.jitter = f
		}
	}
}

// NewStore 创建图并放入起始触发器
func NewStore(opts ...Option) *Store {
	s := &Store{
		ids:    NewSequenceIDs(),
		jitter: func() float64 { return rand.Float64() * jitterRangeY },
		logger: applog.With("component", "graph_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()
	return s
}

func (s *Store) seed() {
	start := types.Node{
		ID:       s.ids.NextNodeID(),
		Type:     types.NodeTypeTrigger,
		Position: types.Position{X: 0, Y: 0},
		Data: types.NodeData{
			TriggerType: types.TriggerTypeTimer,
			Seconds:     types.Float(defaultTimerSeconds),
			IsStart:     true,
		},
	}
	s.nodes = []types.Node{start}
	s.edges = nil
	s.startID = start.ID
}

// StartID 起始触发器 ID
func (s *Store) StartID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startID
}

// AddNode 在最右侧节点右边添加一个带默认数据的节点
func (s *Store) AddNode(nt types.NodeType) (types.Node, error) {
	data, err := defaultData(nt)
	if err != nil {
		return types.Node{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rightmost := 0.0
	for _, n := range s.nodes {
		if n.Position.X > rightmost {
			rightmost = n.Position.X
		}
	}

	n := types.Node{
		ID:       s.nextFreeNodeID(),
		Type:     nt,
		Position: types.Position{X: rightmost + nodeSpacingX, Y: s.jitter()},
		Data:     data,
	}
	s.nodes = append(s.nodes, n)

	s.logger.Debug("[GraphStore] node added", "node_id", n.ID, "type", nt)
	return n.Clone(), nil
}

func defaultData(nt types.NodeType) (types.NodeData, error) {
	switch nt {
	case types.NodeTypeTrigger:
		return types.NodeData{
			TriggerType: types.TriggerTypeTimer,
			Seconds:     types.Float(defaultTimerSeconds),
		}, nil
	case types.NodeTypeAction:
		return types.NodeData{
			ActionType: types.ActionTypeVibe,
			Value:      types.Float(defaultActionValue),
		}, nil
	case types.NodeTypeConditional:
		return types.NodeData{
			Parameter:    "value",
			Operator:     types.OperatorGT,
			CompareValue: "50",
		}, nil
	default:
		return types.NodeData{}, fmt.Errorf("%w: %s", ErrUnknownNodeType, nt)
	}
}

// Connect 连接两个节点。源为条件节点时 sourceHandle 必须是未占用的 "true"/"false"，
// 且作为边的 label；完全相同的连接返回已存在的边
func (s *Store) Connect(source, target, sourceHandle, targetHandle string) (types.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := types.FindNode(s.nodes, source)
	if !ok {
		return types.Edge{}, fmt.Errorf("%w: source %s", ErrNodeNotFound, source)
	}
	if _, ok := types.FindNode(s.nodes, target); !ok {
		return types.Edge{}, fmt.Errorf("%w: target %s", ErrNodeNotFound, target)
	}

	for _, e := range s.edges {
		if e.Source == source && e.Target == target &&
			e.SourceHandle == sourceHandle && e.TargetHandle == targetHandle {
			return e, nil
		}
	}

	label := ""
	if src.Type == types.NodeTypeConditional {
		if !types.BranchHandle(sourceHandle).IsValid() {
			return types.Edge{}, ErrBranchHandleRequired
		}
		for _, e := range s.edges {
			if e.Source == source && e.SourceHandle == sourceHandle {
				return types.Edge{}, fmt.Errorf("%w: %s/%s", ErrBranchTaken, source, sourceHandle)
			}
		}
		label = sourceHandle
	}

	e := types.Edge{
		ID:           s.nextFreeEdgeID(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		Label:        label,
	}
	s.edges = append(s.edges, e)

	s.logger.Debug("[GraphStore] edge connected", "edge_id", e.ID, "source", source, "target", target, "handle", sourceHandle)
	return e, nil
}

// SetField 修改节点字段
func (s *Store) SetField(nodeID string, field Field, value any) (types.Node, error) {
	return s.Apply(Mutation{NodeID: nodeID, Field: field, Value: value})
}

// Apply 消费一次字段修改事件，返回修改后的节点
func (s *Store) Apply(m Mutation) (types.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(m.NodeID)
	if idx < 0 {
		return types.Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, m.NodeID)
	}

	data, err := applyMutation(s.nodes[idx], m)
	if err != nil {
		return types.Node{}, err
	}
	s.nodes[idx].Data = data
	return s.nodes[idx].Clone(), nil
}

// RemoveNode 删除节点及其关联的边。起始触发器不可删除，此时返回 false
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.startID {
		return false
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	s.nodes = append(s.nodes[:idx], s.nodes[idx+1:]...)

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.edges = kept

	s.logger.Debug("[GraphStore] node removed", "node_id", id)
	return true
}

// RemoveEdge 删除边
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.edges {
		if e.ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return true
		}
	}
	return false
}

// Reset 用新的起始触发器替换整张图，ID 分配重新开始
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids.Reset()
	s.seed()
	s.logger.Debug("[GraphStore] graph reset", "start_id", s.startID)
}

// Load 用给定配置替换整张图，配置必须恰好包含一个起始触发器
func (s *Store) Load(cfg *types.GraphConfig) error {
	if cfg == nil {
		return ErrStartNodeMissing
	}

	seen := make(map[string]bool, len(cfg.Nodes))
	startID := ""
	for _, n := range cfg.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = true
		if !n.Type.IsValid() {
			return fmt.Errorf("%w: %s", ErrUnknownNodeType, n.Type)
		}
		if n.IsStart() {
			if startID != "" {
				return ErrMultipleStartNodes
			}
			startID = n.ID
		}
	}
	if startID == "" {
		return ErrStartNodeMissing
	}
	for _, e := range cfg.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("%w: edge %s references %s -> %s", ErrNodeNotFound, e.ID, e.Source, e.Target)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = types.CloneNodes(cfg.Nodes)
	s.edges = types.CloneEdges(cfg.Edges)
	s.startID = startID
	return nil
}

// Snapshot 返回节点和边的深拷贝（插入顺序）
func (s *Store) Snapshot() ([]types.Node, []types.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CloneNodes(s.nodes), types.CloneEdges(s.edges)
}

// Config 以图配置形式返回快照
func (s *Store) Config() *types.GraphConfig {
	nodes, edges := s.Snapshot()
	return &types.GraphConfig{Nodes: nodes, Edges: edges}
}

// Node 按 ID 获取节点副本
func (s *Store) Node(id string) (types.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := types.FindNode(s.nodes, id)
	if !ok {
		return types.Node{}, false
	}
	return n.Clone(), true
}

// AncestorTrigger 见包级函数 AncestorTrigger
func (s *Store) AncestorTrigger(nodeID string) (types.Node, bool) {
	nodes, edges := s.Snapshot()
	return AncestorTrigger(nodes, edges, nodeID)
}

// AvailableParameters 见包级函数 AvailableParameters
func (s *Store) AvailableParameters(nodeID string) []Parameter {
	nodes, edges := s.Snapshot()
	return AvailableParameters(nodes, edges, nodeID)
}

func (s *Store) indexOf(id string) int {
	for i, n := range s.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// nextFreeNodeID 跳过 Load 进来的已占用 ID
func (s *Store) nextFreeNodeID() string {
	for {
		id := s.ids.NextNodeID()
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *Store) nextFreeEdgeID() string {
	for {
		id := s.ids.NextEdgeID()
		taken := false
		for _, e := range s.edges {
			if e.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}
