package runtime

import (
	"sync"

	types "haptix/internal/domain/workflow/model"
)

// TriggerContext 执行期间可被条件节点引用的触发数据
// 由起始触发器播种：{seconds, triggerType}
type TriggerContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewTriggerContext 创建空的触发上下文
func NewTriggerContext() *TriggerContext {
	return &TriggerContext{values: make(map[string]any)}
}

// SeedFromStart 用起始触发器的数据初始化上下文
func SeedFromStart(start types.Node) *TriggerContext {
	tc := NewTriggerContext()
	if start.Data.Seconds != nil {
		tc.Set("seconds", *start.Data.Seconds)
	} else {
		tc.Set("seconds", nil)
	}
	tc.Set("triggerType", string(start.Data.TriggerType))
	return tc
}

// Get 获取参数值
func (tc *TriggerContext) Get(name string) (any, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	v, ok := tc.values[name]
	return v, ok
}

// Set 设置参数值
func (tc *TriggerContext) Set(name string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.values[name] = value
}

// Merge 批量设置参数
func (tc *TriggerContext) Merge(values map[string]any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for k, v := range values {
		tc.values[k] = v
	}
}

// Snapshot 返回所有参数的副本
func (tc *TriggerContext) Snapshot() map[string]any {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make(map[string]any, len(tc.values))
	for k, v := range tc.values {
		out[k] = v
	}
	return out
}
