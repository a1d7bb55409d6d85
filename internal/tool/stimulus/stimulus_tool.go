package stimulustool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
)

// Name 工具名
const Name = "trigger_stimulus"

var validate = validator.New()

type arguments struct {
	Mode types.ActionType   `json:"mode" validate:"required"`
	Type types.StimulusType `json:"type"`
}

// Tool 让 LLM 下发刺激。只接受规则中配置过的 (mode, type) 组合
type Tool struct {
	sender  port.StimulusSender
	allowed []trigger.Action
}

// New 创建工具，allowed 为本次分析可用的动作
func New(sender port.StimulusSender, allowed []trigger.Action) *Tool {
	actions := lo.FilterMap(allowed, func(a trigger.Action, _ int) (trigger.Action, bool) {
		if a.Type == "" {
			a.Type = types.DefaultStimulusType
		}
		return a, a.Mode.IsStimulus()
	})
	return &Tool{
		sender:  sender,
		allowed: lo.Uniq(actions),
	}
}

func (t *Tool) Name() string {
	return Name
}

func (t *Tool) Description() string {
	return "Send a haptic stimulus to the wearable. Call once for every rule whose condition the transcript satisfies."
}

func (t *Tool) Parameters() any {
	modes := lo.Uniq(lo.Map(t.allowed, func(a trigger.Action, _ int) string { return string(a.Mode) }))
	stimTypes := lo.Uniq(lo.Map(t.allowed, func(a trigger.Action, _ int) string { return string(a.Type) }))
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"description": "Stimulus mode of the matched rule",
				"enum":        modes,
			},
			"type": map[string]any{
				"type":        "string",
				"description": "Stimulus pattern of the matched rule",
				"enum":        stimTypes,
			},
		},
		"required": []string{"mode", "type"},
	}
}

// Execute 校验参数后下发刺激
func (t *Tool) Execute(ctx context.Context, raw string) (string, error) {
	var args arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := validate.Struct(args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Type == "" {
		args.Type = types.DefaultStimulusType
	}

	action := trigger.Action{Mode: args.Mode, Type: args.Type}
	if !lo.Contains(t.allowed, action) {
		return "", fmt.Errorf("action %s/%s is not configured by any rule", action.Mode, action.Type)
	}

	if err := t.sender.Trigger(ctx, port.Stimulus{Mode: action.Mode, Type: action.Type}); err != nil {
		return "", fmt.Errorf("trigger stimulus: %w", err)
	}
	return fmt.Sprintf("%s/%s sent", action.Mode, action.Type), nil
}
