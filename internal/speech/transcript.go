package speech

import "strings"

// Transcript 浏览器转发的一段转写。只有 Committed 的句子会驱动触发器
type Transcript struct {
	Text      string `json:"text"`
	Committed bool   `json:"committed"`
}

// Actionable 是否需要交给触发器处理
func (t Transcript) Actionable() bool {
	return t.Committed && strings.TrimSpace(t.Text) != ""
}
