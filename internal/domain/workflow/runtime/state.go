package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"haptix/internal/domain/workflow/event"
	types "haptix/internal/domain/workflow/model"
)

// RunState 一次执行的运行时状态，在引擎与节点之间共享
type RunState struct {
	RunID   string
	StartAt time.Time

	// 触发数据
	Trigger *TriggerContext

	// 节点运行步数
	NodeRunSteps atomic.Int32

	// 动作失败次数
	ActionFailures atomic.Int32

	mu            sync.Mutex
	executedNodes []string
	executedEdges []string
}

// NewRunState 创建新的运行时状态
func NewRunState(runID string, trigger *TriggerContext) *RunState {
	if trigger == nil {
		trigger = NewTriggerContext()
	}
	return &RunState{
		RunID:   runID,
		StartAt: time.Now(),
		Trigger: trigger,
	}
}

// RecordNode 记录已执行节点，返回累计步数
func (s *RunState) RecordNode(nodeID string) int {
	s.mu.Lock()
	s.executedNodes = append(s.executedNodes, nodeID)
	s.mu.Unlock()
	return int(s.NodeRunSteps.Add(1))
}

// RecordEdge 记录已遍历的边
func (s *RunState) RecordEdge(edgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executedEdges = append(s.executedEdges, edgeID)
}

// Result 生成结果对象（副本）
func (s *RunState) Result(outcome types.RunOutcome, err error) *event.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &event.Result{
		RunID:          s.RunID,
		Outcome:        outcome,
		ExecutedNodes:  append([]string{}, s.executedNodes...),
		ExecutedEdges:  append([]string{}, s.executedEdges...),
		Steps:          int(s.NodeRunSteps.Load()),
		ActionFailures: int(s.ActionFailures.Load()),
		ElapsedMs:      time.Since(s.StartAt).Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

type contextKey string

const contextKeyRunState contextKey = "run_state"

// WithRunState 将运行时状态注入 context
func WithRunState(ctx context.Context, s *RunState) context.Context {
	return context.WithValue(ctx, contextKeyRunState, s)
}

// RunStateFrom 从 context 中获取运行时状态
func RunStateFrom(ctx context.Context) (*RunState, bool) {
	s, ok := ctx.Value(contextKeyRunState).(*RunState)
	return s, ok
}
