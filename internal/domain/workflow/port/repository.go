package port

import (
	"context"
	"errors"
	"time"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/trigger"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// SessionStatus 会话状态
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusStopped SessionStatus = "stopped"
)

// Session 一次实时转写会话
type Session struct {
	ID          string            `json:"id"`
	Status      SessionStatus     `json:"status"`
	Workflow    types.GraphConfig `json:"workflow"`
	Config      trigger.Config    `json:"config"`
	Transcripts int               `json:"transcripts"`
	Matches     int               `json:"matches"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	StoppedAt   *time.Time        `json:"stopped_at,omitempty"`
}

// SessionStore 会话存储
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// List 返回未过期的会话 ID
	List(ctx context.Context) ([]string, error)
}

// TriggerKind 触发规则类别
type TriggerKind string

const (
	TriggerKindKeyword TriggerKind = "keyword"
	TriggerKindPrompt  TriggerKind = "prompt"
)

// TriggerRecord 触发记录：会话启动时登记的规则，或转写命中的规则
type TriggerRecord struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Kind      TriggerKind        `json:"kind"`
	Condition string             `json:"condition"`
	Mode      types.ActionType   `json:"mode"`
	Type      types.StimulusType `json:"type,omitempty"`
	Text      string             `json:"text,omitempty"` // 命中时的转写文本
	Matched   bool               `json:"matched"`
	CreatedAt time.Time          `json:"created_at"`
}

// TriggerRepository 触发记录存储
type TriggerRepository interface {
	Record(ctx context.Context, records []*TriggerRecord) error
	List(ctx context.Context, params ListTriggersParams) ([]*TriggerRecord, error)
}

// ListTriggersParams 查询参数
type ListTriggersParams struct {
	SessionID string
	Matched   *bool
	Limit     int
}
