package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memorydb "haptix/internal/db/memory"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
	"haptix/internal/speech"
)

type containsChecker struct {
	mu    sync.Mutex
	calls []port.CheckTextRequest
	fail  string
}

func (c *containsChecker) CheckText(_ context.Context, req port.CheckTextRequest) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if req.SearchString == c.fail {
		return false, errors.New("backend down")
	}
	return strings.Contains(strings.ToLower(req.Text), strings.ToLower(req.SearchString)), nil
}

type fixedAnalyser struct {
	result string
	rules  []trigger.Rule
}

func (f *fixedAnalyser) Analyse(_ context.Context, _ string, rules []trigger.Rule) (string, error) {
	f.rules = rules
	return f.result, nil
}

type countRecorder struct {
	transcripts int
	matches     map[string]int
}

func (c *countRecorder) TranscriptReceived()        { c.transcripts++ }
func (c *countRecorder) TriggerMatched(kind string) { c.matches[kind]++ }

// start -> keyword("stressed") -> zap/double ; start -> prompt("anxious") -> vibe/breathing
func sessionWorkflow() types.GraphConfig {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{TriggerType: types.TriggerTypeTimer, Seconds: types.Float(5), IsStart: true}).
		AddIsolated("kw", types.NodeTypeTrigger, types.NodeData{TriggerType: types.TriggerTypeKeyword, Keyword: "stressed"}).
		AddIsolated("zap", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeZap, StimulusType: types.StimulusTypeDouble}).
		AddIsolated("pr", types.NodeTypeTrigger, types.NodeData{TriggerType: types.TriggerTypePrompt, Prompt: "speaker is anxious"}).
		AddIsolated("vibe", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe, StimulusType: types.StimulusTypeBreathing}).
		Connect("kw", "zap", "").
		Connect("pr", "vibe", "").
		Connect("start", "zap", "").
		Build()
	return *cfg
}

type fixture struct {
	mgr      *Manager
	checker  *containsChecker
	analyser *fixedAnalyser
	triggers *memorydb.TriggerRepository
	recorder *countRecorder
}

func newFixture(analysisResult string) *fixture {
	f := &fixture{
		checker:  &containsChecker{},
		analyser: &fixedAnalyser{result: analysisResult},
		triggers: memorydb.NewTriggerRepository(),
		recorder: &countRecorder{matches: map[string]int{}},
	}
	f.mgr = NewManager(Dependencies{
		Store:    memorydb.NewSessionStore(),
		Keywords: f.checker,
		Analyser: f.analyser,
		Triggers: f.triggers,
		Recorder: f.recorder,
	})
	return f
}

func TestManager_StartRejectsNonExecutable(t *testing.T) {
	f := newFixture("no_match")
	wf := graph.NewBuilder().
		AddStart("start", types.NodeData{TriggerType: types.TriggerTypeTimer, IsStart: true}).
		AddNode("kw", types.NodeTypeTrigger, types.NodeData{TriggerType: types.TriggerTypeKeyword, Keyword: "  "}, "start", "").
		Build()

	_, err := f.mgr.Start(context.Background(), *wf)
	require.ErrorIs(t, err, ErrNotExecutable)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, graph.IssueMissingKeyword, verr.Issues[0].Code)
}

func TestManager_StartRecordsRules(t *testing.T) {
	f := newFixture("no_match")
	sess, err := f.mgr.Start(context.Background(), sessionWorkflow())
	require.NoError(t, err)
	assert.Equal(t, port.SessionStatusActive, sess.Status)
	require.Len(t, sess.Config.KeywordTriggers, 1)
	require.Len(t, sess.Config.PromptTriggers, 1)

	recs, _ := f.triggers.List(context.Background(), port.ListTriggersParams{SessionID: sess.ID})
	assert.Len(t, recs, 2)
}

func TestManager_HandleTranscript(t *testing.T) {
	f := newFixture("vibe/breathing sent")
	ctx := context.Background()
	sess, err := f.mgr.Start(ctx, sessionWorkflow())
	require.NoError(t, err)

	out, err := f.mgr.HandleTranscript(ctx, sess.ID, speech.Transcript{Text: "I'm so STRESSED", Committed: true})
	require.NoError(t, err)
	require.Len(t, out.KeywordMatches, 1)
	assert.Equal(t, types.ActionTypeZap, out.KeywordMatches[0].Action.Mode)
	assert.Equal(t, "vibe/breathing sent", out.PromptResult)
	assert.True(t, out.Matched())

	require.Len(t, f.checker.calls, 1)
	assert.Equal(t, "stressed", f.checker.calls[0].SearchString)
	assert.Equal(t, types.StimulusTypeDouble, f.checker.calls[0].Type)
	assert.Len(t, f.analyser.rules, 1)

	got, _ := f.mgr.Get(ctx, sess.ID)
	assert.Equal(t, 1, got.Transcripts)
	assert.Equal(t, 1, got.Matches)
	assert.Equal(t, 1, f.recorder.transcripts)
	assert.Equal(t, 1, f.recorder.matches["keyword"])
	assert.Equal(t, 1, f.recorder.matches["prompt"])

	matched := true
	hits, _ := f.triggers.List(ctx, port.ListTriggersParams{SessionID: sess.ID, Matched: &matched})
	assert.Len(t, hits, 2)
}

func TestManager_PartialTranscriptSkipped(t *testing.T) {
	f := newFixture("no_match")
	ctx := context.Background()
	sess, _ := f.mgr.Start(ctx, sessionWorkflow())

	out, err := f.mgr.HandleTranscript(ctx, sess.ID, speech.Transcript{Text: "stressed", Committed: false})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, f.checker.calls)
}

func TestManager_KeywordFailureDoesNotStopOthers(t *testing.T) {
	f := newFixture("no_match")
	f.checker.fail = "stressed"
	ctx := context.Background()
	sess, _ := f.mgr.Start(ctx, sessionWorkflow())

	out, err := f.mgr.HandleTranscript(ctx, sess.ID, speech.Transcript{Text: "stressed", Committed: true})
	require.NoError(t, err)
	assert.Len(t, out.Errors, 1)
	assert.Equal(t, "no_match", out.PromptResult)
	assert.False(t, out.Matched())
}

func TestManager_StopAndSubscribe(t *testing.T) {
	f := newFixture("no_match")
	ctx := context.Background()
	sess, _ := f.mgr.Start(ctx, sessionWorkflow())

	ch, cancel := f.mgr.Subscribe(sess.ID)
	defer cancel()

	_, err := f.mgr.HandleTranscript(ctx, sess.ID, speech.Transcript{Text: "stressed", Committed: true})
	require.NoError(t, err)

	select {
	case out := <-ch:
		assert.Len(t, out.KeywordMatches, 1)
	case <-time.After(time.Second):
		t.Fatal("outcome not published")
	}

	stopped, err := f.mgr.Stop(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, port.SessionStatusStopped, stopped.Status)
	assert.NotNil(t, stopped.StoppedAt)

	_, open := <-ch
	assert.False(t, open, "subscriber channel must be closed on stop")

	again, err := f.mgr.Stop(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, stopped.StoppedAt.Unix(), again.StoppedAt.Unix())

	_, err = f.mgr.HandleTranscript(ctx, sess.ID, speech.Transcript{Text: "stressed", Committed: true})
	assert.ErrorIs(t, err, ErrSessionStopped)

	_, err = f.mgr.Stop(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}
