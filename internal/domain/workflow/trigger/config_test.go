package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
)

func TestBuildConfig_PromptRule(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{TriggerType: types.TriggerTypePrompt, Prompt: "user sounds stressed"}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeZap, StimulusType: types.StimulusTypeDouble}, "", "").
		Build()

	got := BuildConfig(cfg.Nodes, cfg.Edges)
	require.Len(t, got.PromptTriggers, 1)
	assert.Empty(t, got.KeywordTriggers)
	assert.Equal(t, Rule{
		Prompt: "user sounds stressed",
		Action: Action{Mode: types.ActionTypeZap, Type: types.StimulusTypeDouble},
	}, got.PromptTriggers[0])
}

func TestBuildConfig_EmptyPromptYieldsNothing(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{TriggerType: types.TriggerTypePrompt, Prompt: "  "}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "", "").
		Build()

	got := BuildConfig(cfg.Nodes, cfg.Edges)
	assert.True(t, got.Empty())
	assert.NotNil(t, got.PromptTriggers)
}

func TestBuildConfig_FanOutAndOrdering(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{TriggerType: types.TriggerTypeKeyword, Keyword: "um"}).
		AddNode("a1", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe, StimulusType: types.StimulusTypeSingle}, "start", "").
		AddNode("a2", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeBeep, StimulusType: types.StimulusTypeTriple}, "start", "").
		AddNode("c", types.NodeTypeConditional, types.NodeData{Operator: types.OperatorGT}, "start", "").
		AddIsolated("k2", types.NodeTypeTrigger, types.NodeData{TriggerType: types.TriggerTypeKeyword, Keyword: "like"}).
		AddIsolated("timer", types.NodeTypeTrigger, types.NodeData{TriggerType: types.TriggerTypeTimer, Seconds: types.Float(3)}).
		Connect("k2", "a1", "").
		Connect("k2", "a1", "again").
		Connect("timer", "a2", "").
		Build()

	got := BuildConfig(cfg.Nodes, cfg.Edges)
	require.Len(t, got.KeywordTriggers, 4)
	assert.Equal(t, []string{"um", "um", "like", "like"}, []string{
		got.KeywordTriggers[0].Keyword,
		got.KeywordTriggers[1].Keyword,
		got.KeywordTriggers[2].Keyword,
		got.KeywordTriggers[3].Keyword,
	})
	assert.Equal(t, types.ActionTypeVibe, got.KeywordTriggers[0].Action.Mode)
	assert.Equal(t, types.ActionTypeBeep, got.KeywordTriggers[1].Action.Mode)
	assert.Equal(t, got.KeywordTriggers[2], got.KeywordTriggers[3], "fan-out is not deduplicated")
	assert.Empty(t, got.PromptTriggers, "timer triggers produce no rules")

	assert.Equal(t, got, BuildConfig(cfg.Nodes, cfg.Edges), "output is deterministic")
	assert.Len(t, got.All(), 4)
}
