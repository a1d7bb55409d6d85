// Package trigger 从工作流图推导会话使用的触发规则
package trigger

import (
	"strings"

	"github.com/samber/lo"

	types "haptix/internal/domain/workflow/model"
)

// Action 规则命中后要下发的刺激（mode 即 actionType，type 即 stimulusType）
type Action struct {
	Mode types.ActionType   `json:"mode" yaml:"mode"`
	Type types.StimulusType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Rule 一条 "触发条件 -> 动作" 规则。Keyword 与 Prompt 只会有一个非空
type Rule struct {
	Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Prompt  string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Action  Action `json:"action" yaml:"action"`
}

// Condition 返回规则的触发条件文本
func (r Rule) Condition() string {
	if r.Keyword != "" {
		return r.Keyword
	}
	return r.Prompt
}

// Config 会话触发配置
type Config struct {
	KeywordTriggers []Rule `json:"keywordTriggers" yaml:"keywordTriggers"`
	PromptTriggers  []Rule `json:"promptTriggers" yaml:"promptTriggers"`
}

// Empty 没有任何规则
func (c Config) Empty() bool {
	return len(c.KeywordTriggers) == 0 && len(c.PromptTriggers) == 0
}

// All 按 keyword、prompt 的顺序返回全部规则
func (c Config) All() []Rule {
	return append(append([]Rule{}, c.KeywordTriggers...), c.PromptTriggers...)
}

// BuildConfig 遍历触发器节点（节点顺序）及其出边（边顺序），
// 对每个直连的动作节点生成一条规则。不去重，定时触发器不产生规则
func BuildConfig(nodes []types.Node, edges []types.Edge) Config {
	cfg := Config{
		KeywordTriggers: []Rule{},
		PromptTriggers:  []Rule{},
	}

	byID := lo.KeyBy(nodes, func(n types.Node) string { return n.ID })

	triggers := lo.Filter(nodes, func(n types.Node, _ int) bool {
		return n.Type == types.NodeTypeTrigger
	})

	for _, t := range triggers {
		keyword := strings.TrimSpace(t.Data.Keyword)
		prompt := strings.TrimSpace(t.Data.Prompt)

		outgoing := lo.Filter(edges, func(e types.Edge, _ int) bool { return e.Source == t.ID })
		actions := lo.FilterMap(outgoing, func(e types.Edge, _ int) (Action, bool) {
			target, ok := byID[e.Target]
			if !ok || target.Type != types.NodeTypeAction {
				return Action{}, false
			}
			return Action{Mode: target.Data.ActionType, Type: target.Data.StimulusType}, true
		})

		switch t.Data.TriggerType {
		case types.TriggerTypeKeyword:
			if keyword == "" {
				continue
			}
			for _, a := range actions {
				cfg.KeywordTriggers = append(cfg.KeywordTriggers, Rule{Keyword: t.Data.Keyword, Action: a})
			}
		case types.TriggerTypePrompt:
			if prompt == "" {
				continue
			}
			for _, a := range actions {
				cfg.PromptTriggers = append(cfg.PromptTriggers, Rule{Prompt: t.Data.Prompt, Action: a})
			}
		}
	}

	return cfg
}
