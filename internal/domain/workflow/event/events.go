package event

import (
	"time"

	types "haptix/internal/domain/workflow/model"
)

// EventType 事件类型标识
type EventType string

const (
	// 运行级事件
	EventTypeRunStarted   EventType = "run_started"
	EventTypeRunSucceeded EventType = "run_succeeded"
	EventTypeRunAborted   EventType = "run_aborted"
	EventTypeRunFailed    EventType = "run_failed"

	// 遍历事件（驱动编辑器高亮）
	EventTypeNodeEntered   EventType = "node_entered"
	EventTypeEdgeTraversed EventType = "edge_traversed"
	EventTypeBranchChosen  EventType = "branch_chosen"

	// 动作事件
	EventTypeActionSent   EventType = "action_sent"
	EventTypeActionFailed EventType = "action_failed"
)

// Event 执行引擎对外发出的事件。同一时刻最多只有一个节点或边处于激活状态
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id"`
	NodeID    string             `json:"node_id,omitempty"`
	NodeType  types.NodeType     `json:"node_type,omitempty"`
	EdgeID    string             `json:"edge_id,omitempty"`
	Branch    types.BranchHandle `json:"branch,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Result    *Result            `json:"result,omitempty"`
}

// Terminal 是否为运行结束事件
func (e Event) Terminal() bool {
	switch e.Type {
	case EventTypeRunSucceeded, EventTypeRunAborted, EventTypeRunFailed:
		return true
	default:
		return false
	}
}

// Result 一次执行的结果。已执行的节点和边归属于结果对象本身
type Result struct {
	RunID          string           `json:"run_id"`
	Outcome        types.RunOutcome `json:"outcome"`
	ExecutedNodes  []string         `json:"executed_nodes"`
	ExecutedEdges  []string         `json:"executed_edges"`
	Steps          int              `json:"steps"`
	ActionFailures int              `json:"action_failures"`
	Error          string           `json:"error,omitempty"`
	ElapsedMs      int64            `json:"elapsed_ms"`
}

// NewRunStartedEvent 创建运行开始事件
func NewRunStartedEvent(runID, startID string) Event {
	return Event{Type: EventTypeRunStarted, RunID: runID, NodeID: startID, Timestamp: time.Now()}
}

// NewNodeEnteredEvent 创建节点进入事件
func NewNodeEnteredEvent(runID string, n types.Node) Event {
	return Event{Type: EventTypeNodeEntered, RunID: runID, NodeID: n.ID, NodeType: n.Type, Timestamp: time.Now()}
}

// NewEdgeTraversedEvent 创建边遍历事件
func NewEdgeTraversedEvent(runID string, e types.Edge) Event {
	return Event{Type: EventTypeEdgeTraversed, RunID: runID, NodeID: e.Source, EdgeID: e.ID, Timestamp: time.Now()}
}

// NewBranchChosenEvent 创建条件分支选择事件
func NewBranchChosenEvent(runID, nodeID string, branch types.BranchHandle, e types.Edge) Event {
	return Event{Type: EventTypeBranchChosen, RunID: runID, NodeID: nodeID, EdgeID: e.ID, Branch: branch, Timestamp: time.Now()}
}

// NewActionSentEvent 创建动作成功事件
func NewActionSentEvent(runID string, n types.Node) Event {
	return Event{Type: EventTypeActionSent, RunID: runID, NodeID: n.ID, NodeType: n.Type, Timestamp: time.Now()}
}

// NewActionFailedEvent 创建动作失败事件
func NewActionFailedEvent(runID string, n types.Node, err string) Event {
	return Event{Type: EventTypeActionFailed, RunID: runID, NodeID: n.ID, NodeType: n.Type, Error: err, Timestamp: time.Now()}
}

// NewRunFinishedEvent 根据结果创建结束事件
func NewRunFinishedEvent(result *Result) Event {
	ev := Event{RunID: result.RunID, Error: result.Error, Timestamp: time.Now(), Result: result}
	switch result.Outcome {
	case types.RunOutcomeSucceeded:
		ev.Type = EventTypeRunSucceeded
	case types.RunOutcomeAborted:
		ev.Type = EventTypeRunAborted
	default:
		ev.Type = EventTypeRunFailed
	}
	return ev
}
