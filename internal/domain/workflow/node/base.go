package node

import (
	"context"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/runtime"
)

// Node 是所有工作流节点执行器必须实现的接口
type Node interface {
	// ID 返回节点唯一标识
	ID() string

	// Type 返回节点类型
	Type() types.NodeType

	// Title 返回节点的展示标题
	Title() string

	// Run 执行节点逻辑
	// ctx 用于传递取消信号和运行时状态；返回 error 表示执行被中断（通常是 ctx 取消）
	Run(ctx context.Context) (*NodeRunResult, error)
}

// Status 节点执行状态
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// NodeRunResult 节点执行结果
type NodeRunResult struct {
	Status  Status             `json:"status"`
	Branch  types.BranchHandle `json:"branch,omitempty"` // 仅条件节点
	Outputs map[string]any     `json:"outputs,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// SucceededResult 创建成功的执行结果
func SucceededResult(outputs map[string]any) *NodeRunResult {
	return &NodeRunResult{Status: StatusSucceeded, Outputs: outputs}
}

// FailedResult 创建失败的执行结果
func FailedResult(errMsg string) *NodeRunResult {
	return &NodeRunResult{
		Status: StatusFailed,
		Error:  errMsg,
	}
}

// TriggerContextFrom 从 context 中获取触发上下文
func TriggerContextFrom(ctx context.Context) (*runtime.TriggerContext, bool) {
	s, ok := runtime.RunStateFrom(ctx)
	if !ok || s.Trigger == nil {
		return nil, false
	}
	return s.Trigger, true
}
