// Package analysis 用 LLM 判断转写文本是否满足提示词触发规则
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
	applog "haptix/internal/platform/log"
	"haptix/internal/provider"
	"haptix/internal/tool"
	stimulustool "haptix/internal/tool/stimulus"
)

// NoMatch 没有规则命中时的结果
const NoMatch = "no_match"

const systemPrompt = `You monitor a live speech transcript for a haptic feedback wearable.
Each rule below has a condition written in natural language and the stimulus to send when it holds.
Read the transcript. For every rule whose condition is clearly satisfied, call the %s tool once with that rule's mode and type.
If no condition is satisfied, call no tool and reply with "%s".

Rules:
%s`

// Config 分析器配置
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Analyser 实现 port.TriggerAnalyser
type Analyser struct {
	llm    provider.LLMProvider
	sender port.StimulusSender
	config Config
	logger *slog.Logger
}

// New 创建分析器
func New(llm provider.LLMProvider, sender port.StimulusSender, cfg Config) *Analyser {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	return &Analyser{
		llm:    llm,
		sender: sender,
		config: cfg,
		logger: applog.With("component", "trigger_analyser"),
	}
}

// Analyse 把提示词规则和转写交给 LLM，执行返回的每个工具调用。
// 返回已下发动作的摘要，或 NoMatch
func (a *Analyser) Analyse(ctx context.Context, text string, rules []trigger.Rule) (string, error) {
	rules = lo.Filter(rules, func(r trigger.Rule, _ int) bool { return strings.TrimSpace(r.Prompt) != "" })
	if len(rules) == 0 || strings.TrimSpace(text) == "" {
		return NoMatch, nil
	}

	registry := tool.NewRegistry(stimulustool.New(a.sender, lo.Map(rules, func(r trigger.Rule, _ int) trigger.Action {
		return r.Action
	})))

	req := &provider.CompletionRequest{
		Model:       a.config.Model,
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
		Messages: []provider.Message{
			{Role: "system", Content: BuildSystemPrompt(rules)},
			{Role: "user", Content: text},
		},
		Tools:      registry.Definitions(),
		ToolChoice: "auto",
	}

	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		a.logger.Debug("[Analyser] no rule matched", "reply", resp.Content)
		return NoMatch, nil
	}

	var fired []string
	var failed error
	for _, call := range resp.ToolCalls {
		out, err := registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
		if err != nil {
			a.logger.Warn("[Analyser] tool call failed", "tool", call.Function.Name, "arguments", call.Function.Arguments, "error", err)
			if failed == nil {
				failed = err
			}
			continue
		}
		fired = append(fired, out)
	}

	if len(fired) == 0 {
		return "", fmt.Errorf("all tool calls failed: %w", failed)
	}
	a.logger.Info("[Analyser] prompt rules fired", "count", len(fired))
	return strings.Join(fired, "; "), nil
}

// BuildSystemPrompt 生成列出全部规则的系统提示词
func BuildSystemPrompt(rules []trigger.Rule) string {
	var b strings.Builder
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. condition: %q -> mode=%s type=%s\n", i+1, strings.TrimSpace(r.Prompt), r.Action.Mode, lo.CoalesceOrEmpty(string(r.Action.Type), "single"))
	}
	return fmt.Sprintf(systemPrompt, stimulustool.Name, NoMatch, b.String())
}
