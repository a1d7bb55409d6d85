package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"haptix/internal/provider"
)

// Tool 工具接口
type Tool interface {
	// Name 工具名称（唯一标识）
	Name() string

	// Description 工具描述（传给 LLM 作为 function description）
	Description() string

	// Parameters 参数的 JSON Schema
	Parameters() any

	// Execute 执行工具，arguments 为 LLM 传入的 JSON string。
	// 返回结果文本
	Execute(ctx context.Context, arguments string) (string, error)
}

// Registry 工具注册表
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry 创建工具注册表
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register 注册工具
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get 获取工具
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions 将注册的工具转为 Provider ToolDefinition 列表（按名称排序）
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]provider.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute 执行指定名称的工具
func (r *Registry) Execute(ctx context.Context, name string, arguments string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	return t.Execute(ctx, arguments)
}
