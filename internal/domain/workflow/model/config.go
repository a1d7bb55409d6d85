package types

// GraphConfig 工作流的完整图结构，来自编辑器、会话请求或工作流文件
type GraphConfig struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Position 节点在画布上的位置，仅用于布局
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node 图中的节点
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     NodeType `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// IsStart 是否为起始触发器
func (n Node) IsStart() bool {
	return n.Type == NodeTypeTrigger && n.Data.IsStart
}

// NodeData 三种节点数据的并集，字段名与编辑器保持一致
type NodeData struct {
	// trigger
	TriggerType TriggerType `json:"triggerType,omitempty" yaml:"triggerType,omitempty" mapstructure:"triggerType"`
	Keyword     string      `json:"keyword,omitempty" yaml:"keyword,omitempty" mapstructure:"keyword"`
	Prompt      string      `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	IsStart     bool        `json:"isStart,omitempty" yaml:"isStart,omitempty" mapstructure:"isStart"`

	// trigger(timer) / action(wait)
	Seconds *float64 `json:"seconds,omitempty" yaml:"seconds,omitempty" mapstructure:"seconds"`

	// action
	ActionType   ActionType   `json:"actionType,omitempty" yaml:"actionType,omitempty" mapstructure:"actionType"`
	StimulusType StimulusType `json:"stimulusType,omitempty" yaml:"stimulusType,omitempty" mapstructure:"stimulusType"`
	Value        *float64     `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`

	// conditional
	Parameter    string   `json:"parameter,omitempty" yaml:"parameter,omitempty" mapstructure:"parameter"`
	Operator     Operator `json:"operator,omitempty" yaml:"operator,omitempty" mapstructure:"operator"`
	CompareValue string   `json:"compareValue,omitempty" yaml:"compareValue,omitempty" mapstructure:"compareValue"`
}

// Edge 两个节点之间的连接
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Float 返回指针值的副本，便于构造 NodeData
func Float(v float64) *float64 {
	return &v
}

// Clone 深拷贝节点（NodeData 中含指针字段）
func (n Node) Clone() Node {
	c := n
	if n.Data.Seconds != nil {
		c.Data.Seconds = Float(*n.Data.Seconds)
	}
	if n.Data.Value != nil {
		c.Data.Value = Float(*n.Data.Value)
	}
	return c
}

// CloneNodes 深拷贝节点列表
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges 拷贝边列表
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// FindNode 按 ID 查找节点
func FindNode(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindStart 查找起始触发器
func FindStart(nodes []Node) (Node, bool) {
	for _, n := range nodes {
		if n.IsStart() {
			return n, true
		}
	}
	return Node{}, false
}
