package node

import (
	"fmt"
	"sort"
	"sync"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
)

// Dependencies 节点执行器需要的外部协作者
type Dependencies struct {
	Stimulus port.StimulusSender
}

// NodeConstructor 节点构造函数类型
type NodeConstructor func(n types.Node, deps Dependencies) (Node, error)

// Registry 节点类型注册表
// 所有节点类型在 init() 中注册自身的构造函数
type Registry struct {
	mu           sync.RWMutex
	constructors map[types.NodeType]NodeConstructor
}

// globalRegistry 全局节点注册表实例
var globalRegistry = NewRegistry()

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[types.NodeType]NodeConstructor)}
}

// Register 注册节点类型的构造函数
func Register(nodeType types.NodeType, constructor NodeConstructor) {
	globalRegistry.Register(nodeType, constructor)
}

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	return globalRegistry
}

// Register 注册节点类型的构造函数
func (r *Registry) Register(nodeType types.NodeType, constructor NodeConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[nodeType] = constructor
}

// Get 根据节点类型获取构造函数
func (r *Registry) Get(nodeType types.NodeType) (NodeConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[nodeType]
	return c, ok
}

// RegisteredTypes 返回所有已注册的节点类型（排序后）
func (r *Registry) RegisteredTypes() []types.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]types.NodeType, 0, len(r.constructors))
	for nt := range r.constructors {
		result = append(result, nt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Factory 节点工厂，通过注册表创建节点实例
type Factory struct {
	registry *Registry
	deps     Dependencies
}

// NewFactory 使用全局注册表创建节点工厂
func NewFactory(deps Dependencies) *Factory {
	return &Factory{registry: globalRegistry, deps: deps}
}

// NewFactoryWithRegistry 使用指定注册表创建工厂
func NewFactoryWithRegistry(registry *Registry, deps Dependencies) *Factory {
	return &Factory{registry: registry, deps: deps}
}

// CreateNode 根据节点定义创建执行器
func (f *Factory) CreateNode(n types.Node) (Node, error) {
	constructor, ok := f.registry.Get(n.Type)
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s (node id: %s)", n.Type, n.ID)
	}

	exec, err := constructor(n, f.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s (type: %s): %w", n.ID, n.Type, err)
	}
	return exec, nil
}
