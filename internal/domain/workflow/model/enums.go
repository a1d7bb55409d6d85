package types

// NodeType 表示工作流中节点的类型
type NodeType string

const (
	NodeTypeTrigger     NodeType = "trigger"
	NodeTypeAction      NodeType = "action"
	NodeTypeConditional NodeType = "conditional"
)

// IsValid 判断节点类型是否受支持
func (nt NodeType) IsValid() bool {
	switch nt {
	case NodeTypeTrigger, NodeTypeAction, NodeTypeConditional:
		return true
	default:
		return false
	}
}

// TriggerType 触发器的检测来源
type TriggerType string

const (
	TriggerTypeKeyword TriggerType = "keyword"
	TriggerTypePrompt  TriggerType = "prompt"
	TriggerTypeTimer   TriggerType = "timer"
)

// ActionType 动作节点对应的刺激模式（即后端的 mode）
type ActionType string

const (
	ActionTypeVibe ActionType = "vibe"
	ActionTypeZap  ActionType = "zap"
	ActionTypeBeep ActionType = "beep"
	ActionTypeWait ActionType = "wait"
)

// IsStimulus 是否需要调用刺激后端（wait 只在本地等待）
func (at ActionType) IsStimulus() bool {
	switch at {
	case ActionTypeVibe, ActionTypeZap, ActionTypeBeep:
		return true
	default:
		return false
	}
}

// StimulusType 刺激的节奏预设
type StimulusType string

const (
	StimulusTypeSingle    StimulusType = "single"
	StimulusTypeDouble    StimulusType = "double"
	StimulusTypeTriple    StimulusType = "triple"
	StimulusTypeLong      StimulusType = "long"
	StimulusTypeHeartbeat StimulusType = "heartbeat"
	StimulusTypeBreathing StimulusType = "breathing"
)

// DefaultStimulusType 编辑器下拉框的默认值
const DefaultStimulusType = StimulusTypeSingle

// StimulusTypes 返回全部预设，顺序与编辑器一致
func StimulusTypes() []StimulusType {
	return []StimulusType{
		StimulusTypeSingle,
		StimulusTypeDouble,
		StimulusTypeTriple,
		StimulusTypeLong,
		StimulusTypeHeartbeat,
		StimulusTypeBreathing,
	}
}

// Operator 条件节点的比较操作符
type Operator string

const (
	OperatorGT       Operator = ">"
	OperatorLT       Operator = "<"
	OperatorGTE      Operator = ">="
	OperatorLTE      Operator = "<="
	OperatorEqual    Operator = "==="
	OperatorNotEqual Operator = "!=="
)

// IsNumeric 数值比较操作符
func (op Operator) IsNumeric() bool {
	switch op {
	case OperatorGT, OperatorLT, OperatorGTE, OperatorLTE:
		return true
	default:
		return false
	}
}

// BranchHandle 条件节点出边的分支标识
type BranchHandle string

const (
	BranchTrue  BranchHandle = "true"
	BranchFalse BranchHandle = "false"
)

// BranchFor 根据布尔结果返回对应的分支 handle
func BranchFor(result bool) BranchHandle {
	if result {
		return BranchTrue
	}
	return BranchFalse
}

// IsValid 是否为合法的分支 handle
func (h BranchHandle) IsValid() bool {
	return h == BranchTrue || h == BranchFalse
}

// RunStatus 执行引擎状态
type RunStatus string

const (
	RunStatusIdle    RunStatus = "idle"
	RunStatusRunning RunStatus = "running"
)

// RunOutcome 一次执行的最终结果
type RunOutcome string

const (
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeAborted   RunOutcome = "aborted"
	RunOutcomeFailed    RunOutcome = "failed"
)
