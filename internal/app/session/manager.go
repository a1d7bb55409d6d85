// Package session 管理实时转写会话：启动时从工作流推导触发规则，
// 之后把每条已提交的转写交给关键词检测与 LLM 分析
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"haptix/internal/analysis"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
	applog "haptix/internal/platform/log"
	"haptix/internal/speech"
)

var (
	// ErrNotExecutable 工作流不满足启动条件
	ErrNotExecutable = errors.New("workflow is not executable")

	// ErrSessionStopped 会话已停止
	ErrSessionStopped = errors.New("session stopped")
)

// ValidationError 携带校验问题的启动错误
type ValidationError struct {
	Issues []graph.Issue
}

func (e *ValidationError) Error() string {
	msgs := lo.Map(e.Issues, func(i graph.Issue, _ int) string { return i.String() })
	return fmt.Sprintf("%s: %s", ErrNotExecutable, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrNotExecutable }

// Recorder 会话指标钩子
type Recorder interface {
	TranscriptReceived()
	TriggerMatched(kind string)
}

// KeywordMatch 一条命中的关键词规则
type KeywordMatch struct {
	Keyword string         `json:"keyword"`
	Action  trigger.Action `json:"action"`
}

// Outcome 一条转写的处理结果
type Outcome struct {
	SessionID      string         `json:"session_id"`
	Text           string         `json:"text"`
	Skipped        bool           `json:"skipped,omitempty"`
	KeywordMatches []KeywordMatch `json:"keyword_matches"`
	PromptResult   string         `json:"prompt_result,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	At             time.Time      `json:"at"`
}

// Matched 是否有规则命中
func (o Outcome) Matched() bool {
	return len(o.KeywordMatches) > 0 || o.promptFired()
}

func (o Outcome) promptFired() bool {
	return o.PromptResult != "" && o.PromptResult != analysis.NoMatch
}

// Dependencies 会话管理器依赖。Analyser / Triggers / Recorder 可为空
type Dependencies struct {
	Store    port.SessionStore
	Keywords port.KeywordChecker
	Analyser port.TriggerAnalyser
	Triggers port.TriggerRepository
	Recorder Recorder
}

// Manager 会话管理器
type Manager struct {
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time

	// 计数器的读-改-写
	mu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]map[chan Outcome]struct{}
}

// NewManager 创建会话管理器
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps:        deps,
		logger:      applog.With("component", "session_manager"),
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[string]map[chan Outcome]struct{}),
	}
}

// Start 校验工作流并创建会话
func (m *Manager) Start(ctx context.Context, wf types.GraphConfig) (*port.Session, error) {
	if issues := graph.Validate(wf.Nodes, wf.Edges); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	now := m.now()
	sess := &port.Session{
		ID:        uuid.New().String(),
		Status:    port.SessionStatusActive,
		Workflow:  wf,
		Config:    trigger.BuildConfig(wf.Nodes, wf.Edges),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.deps.Store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if m.deps.Triggers != nil {
		if err := m.deps.Triggers.Record(ctx, ruleRecords(sess.ID, sess.Config, now)); err != nil {
			// 记录失败不影响会话
			m.logger.Warn("[SessionManager] record trigger rules failed", "session_id", sess.ID, "error", err)
		}
	}

	m.logger.Info("[SessionManager] session started",
		"session_id", sess.ID,
		"keyword_rules", len(sess.Config.KeywordTriggers),
		"prompt_rules", len(sess.Config.PromptTriggers),
	)
	return sess, nil
}

// Get 读取会话
func (m *Manager) Get(ctx context.Context, id string) (*port.Session, error) {
	return m.deps.Store.Get(ctx, id)
}

// List 列出会话 ID
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.deps.Store.List(ctx)
}

// Stop 停止会话。重复停止是无操作
func (m *Manager) Stop(ctx context.Context, id string) (*port.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == port.SessionStatusStopped {
		return sess, nil
	}

	now := m.now()
	sess.Status = port.SessionStatusStopped
	sess.StoppedAt = &now
	sess.UpdatedAt = now
	if err := m.deps.Store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.closeSubscribers(id)
	m.logger.Info("[SessionManager] session stopped", "session_id", id, "transcripts", sess.Transcripts, "matches", sess.Matches)
	return sess, nil
}

// HandleTranscript 处理一条转写：关键词规则逐条交给 KeywordChecker，
// 提示词规则整体交给 TriggerAnalyser。单条规则失败不影响其余规则
func (m *Manager) HandleTranscript(ctx context.Context, id string, t speech.Transcript) (*Outcome, error) {
	sess, err := m.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != port.SessionStatusActive {
		return nil, ErrSessionStopped
	}

	out := &Outcome{SessionID: id, Text: t.Text, KeywordMatches: []KeywordMatch{}, At: m.now()}
	if !t.Actionable() {
		out.Skipped = true
		return out, nil
	}
	if m.deps.Recorder != nil {
		m.deps.Recorder.TranscriptReceived()
	}

	logger := m.logger.With("session_id", id)

	for _, rule := range sess.Config.KeywordTriggers {
		exists, err := m.deps.Keywords.CheckText(ctx, port.CheckTextRequest{
			Text:         t.Text,
			SearchString: rule.Keyword,
			Mode:         rule.Action.Mode,
			Type:         rule.Action.Type,
		})
		if err != nil {
			logger.Warn("[SessionManager] keyword check failed", "keyword", rule.Keyword, "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("keyword %q: %v", rule.Keyword, err))
			continue
		}
		if exists {
			out.KeywordMatches = append(out.KeywordMatches, KeywordMatch{Keyword: rule.Keyword, Action: rule.Action})
			if m.deps.Recorder != nil {
				m.deps.Recorder.TriggerMatched(string(port.TriggerKindKeyword))
			}
		}
	}

	if len(sess.Config.PromptTriggers) > 0 && m.deps.Analyser != nil {
		result, err := m.deps.Analyser.Analyse(ctx, t.Text, sess.Config.PromptTriggers)
		if err != nil {
			logger.Warn("[SessionManager] prompt analysis failed", "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("prompt analysis: %v", err))
		} else {
			out.PromptResult = result
			if out.promptFired() && m.deps.Recorder != nil {
				m.deps.Recorder.TriggerMatched(string(port.TriggerKindPrompt))
			}
		}
	}

	if err := m.bumpCounters(ctx, id, out); err != nil {
		logger.Warn("[SessionManager] update counters failed", "error", err)
	}
	m.recordMatches(ctx, sess, out)
	m.publish(id, *out)

	logger.Debug("[SessionManager] transcript handled", "keyword_matches", len(out.KeywordMatches), "prompt_result", out.PromptResult)
	return out, nil
}

func (m *Manager) bumpCounters(ctx context.Context, id string, out *Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Transcripts++
	if out.Matched() {
		sess.Matches++
	}
	sess.UpdatedAt = m.now()
	return m.deps.Store.Save(ctx, sess)
}

func (m *Manager) recordMatches(ctx context.Context, sess *port.Session, out *Outcome) {
	if m.deps.Triggers == nil || !out.Matched() {
		return
	}

	records := lo.Map(out.KeywordMatches, func(km KeywordMatch, _ int) *port.TriggerRecord {
		return &port.TriggerRecord{
			SessionID: sess.ID,
			Kind:      port.TriggerKindKeyword,
			Condition: km.Keyword,
			Mode:      km.Action.Mode,
			Type:      km.Action.Type,
			Text:      out.Text,
			Matched:   true,
			CreatedAt: out.At,
		}
	})
	if out.promptFired() {
		for _, r := range firedPromptRules(sess.Config.PromptTriggers, out.PromptResult) {
			records = append(records, &port.TriggerRecord{
				SessionID: sess.ID,
				Kind:      port.TriggerKindPrompt,
				Condition: r.Prompt,
				Mode:      r.Action.Mode,
				Type:      r.Action.Type,
				Text:      out.Text,
				Matched:   true,
				CreatedAt: out.At,
			})
		}
	}
	if err := m.deps.Triggers.Record(ctx, records); err != nil {
		m.logger.Warn("[SessionManager] record matches failed", "session_id", sess.ID, "error", err)
	}
}

// firedPromptRules 分析结果形如 "vibe/breathing sent; zap/single sent"，
// 按动作找回对应的提示词规则
func firedPromptRules(rules []trigger.Rule, result string) []trigger.Rule {
	return lo.Filter(rules, func(r trigger.Rule, _ int) bool {
		st := r.Action.Type
		if st == "" {
			st = types.DefaultStimulusType
		}
		return strings.Contains(result, string(r.Action.Mode)+"/"+string(st))
	})
}

func ruleRecords(sessionID string, cfg trigger.Config, at time.Time) []*port.TriggerRecord {
	toRecord := func(kind port.TriggerKind) func(trigger.Rule, int) *port.TriggerRecord {
		return func(r trigger.Rule, _ int) *port.TriggerRecord {
			return &port.TriggerRecord{
				SessionID: sessionID,
				Kind:      kind,
				Condition: r.Condition(),
				Mode:      r.Action.Mode,
				Type:      r.Action.Type,
				CreatedAt: at,
			}
		}
	}
	return append(
		lo.Map(cfg.KeywordTriggers, toRecord(port.TriggerKindKeyword)),
		lo.Map(cfg.PromptTriggers, toRecord(port.TriggerKindPrompt))...,
	)
}
