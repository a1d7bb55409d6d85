package graph

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	types "haptix/internal/domain/workflow/model"
)

// Field 可编辑的节点字段（与编辑器 JSON 字段名一致）
type Field string

const (
	FieldTriggerType  Field = "triggerType"
	FieldKeyword      Field = "keyword"
	FieldPrompt       Field = "prompt"
	FieldSeconds      Field = "seconds"
	FieldIsStart      Field = "isStart"
	FieldActionType   Field = "actionType"
	FieldStimulusType Field = "stimulusType"
	FieldValue        Field = "value"
	FieldParameter    Field = "parameter"
	FieldOperator     Field = "operator"
	FieldCompareValue Field = "compareValue"
)

// Mutation 节点字段修改事件，由 Store.Apply 统一消费
type Mutation struct {
	NodeID string `json:"node_id"`
	Field  Field  `json:"field"`
	Value  any    `json:"value"`
}

var editableFields = map[types.NodeType]map[Field]bool{
	types.NodeTypeTrigger: {
		FieldTriggerType: true,
		FieldKeyword:     true,
		FieldPrompt:      true,
		FieldSeconds:     true,
	},
	types.NodeTypeAction: {
		FieldActionType:   true,
		FieldStimulusType: true,
		FieldValue:        true,
		FieldSeconds:      true,
	},
	types.NodeTypeConditional: {
		FieldParameter:    true,
		FieldOperator:     true,
		FieldCompareValue: true,
	},
}

// applyMutation 将字段修改应用到节点数据副本上，校验通过后才返回
func applyMutation(n types.Node, m Mutation) (types.NodeData, error) {
	if m.Field == FieldIsStart {
		return n.Data, fmt.Errorf("%w: %s", ErrImmutableField, m.Field)
	}
	if !editableFields[n.Type][m.Field] {
		return n.Data, fmt.Errorf("%w: %s on %s", ErrUnknownField, m.Field, n.Type)
	}

	data := n.Clone().Data

	if m.Value == nil {
		clearField(&data, m.Field)
		return data, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &data,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return n.Data, err
	}
	if err := decoder.Decode(map[string]any{string(m.Field): m.Value}); err != nil {
		return n.Data, fmt.Errorf("%w: %s: %v", ErrInvalidValue, m.Field, err)
	}

	if err := validateData(n.Type, data); err != nil {
		return n.Data, err
	}
	return data, nil
}

func clearField(data *types.NodeData, field Field) {
	switch field {
	case FieldSeconds:
		data.Seconds = nil
	case FieldValue:
		data.Value = nil
	case FieldKeyword:
		data.Keyword = ""
	case FieldPrompt:
		data.Prompt = ""
	case FieldStimulusType:
		data.StimulusType = ""
	case FieldParameter:
		data.Parameter = ""
	case FieldCompareValue:
		data.CompareValue = ""
	}
}

// validateData 校验枚举字段取值
func validateData(nt types.NodeType, data types.NodeData) error {
	switch nt {
	case types.NodeTypeTrigger:
		switch data.TriggerType {
		case types.TriggerTypeKeyword, types.TriggerTypePrompt, types.TriggerTypeTimer:
		default:
			return fmt.Errorf("%w: triggerType %q", ErrInvalidValue, data.TriggerType)
		}
	case types.NodeTypeAction:
		switch data.ActionType {
		case types.ActionTypeVibe, types.ActionTypeZap, types.ActionTypeBeep, types.ActionTypeWait:
		default:
			return fmt.Errorf("%w: actionType %q", ErrInvalidValue, data.ActionType)
		}
		if data.StimulusType != "" && !isStimulusType(data.StimulusType) {
			return fmt.Errorf("%w: stimulusType %q", ErrInvalidValue, data.StimulusType)
		}
	case types.NodeTypeConditional:
		switch data.Operator {
		case types.OperatorGT, types.OperatorLT, types.OperatorGTE, types.OperatorLTE,
			types.OperatorEqual, types.OperatorNotEqual:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidValue, data.Operator)
		}
	}
	return nil
}

func isStimulusType(st types.StimulusType) bool {
	for _, t := range types.StimulusTypes() {
		if t == st {
			return true
		}
	}
	return false
}
