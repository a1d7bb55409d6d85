package port

import (
	"context"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/trigger"
)

// Stimulus 一次刺激请求。Type 为空或不是预设时，按 Value/Repeats/Interval 直接下发
type Stimulus struct {
	Mode     types.ActionType   `json:"mode" validate:"required,oneof=vibe zap beep"`
	Type     types.StimulusType `json:"type"`
	Value    *int               `json:"value,omitempty" validate:"omitempty,min=0,max=100"`
	Repeats  *int               `json:"repeats,omitempty" validate:"omitempty,min=0,max=50"`
	Interval *float64           `json:"interval,omitempty" validate:"omitempty,min=0"`
}

// StimulusSender 刺激后端
type StimulusSender interface {
	Trigger(ctx context.Context, s Stimulus) error
}

// CheckTextRequest 关键词检测请求（字段名与后端一致）
type CheckTextRequest struct {
	Text         string             `json:"text" validate:"required"`
	SearchString string             `json:"search_string" validate:"required"`
	Mode         types.ActionType   `json:"mode" validate:"required"`
	Type         types.StimulusType `json:"type"`
}

// KeywordChecker 关键词检测后端，命中时由后端负责下发刺激
type KeywordChecker interface {
	CheckText(ctx context.Context, req CheckTextRequest) (bool, error)
}

// TriggerAnalyser 基于 LLM 的提示词触发分析，命中规则时下发零或多次刺激
type TriggerAnalyser interface {
	Analyse(ctx context.Context, text string, rules []trigger.Rule) (string, error)
}
