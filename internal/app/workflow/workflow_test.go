package workflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/event"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
)

const yamlWorkflow = `
nodes:
  - id: start
    type: trigger
    position: {x: 0, y: 0}
    data: {triggerType: timer, seconds: 5, isStart: true}
  - id: cond
    type: conditional
    position: {x: 300, y: 0}
    data: {parameter: seconds, operator: ">", compareValue: "3"}
  - id: zap
    type: action
    position: {x: 600, y: 0}
    data: {actionType: zap, stimulusType: double}
  - id: beep
    type: action
    position: {x: 600, y: 100}
    data: {actionType: beep}
edges:
  - {id: e1, source: start, target: cond}
  - {id: e2, source: cond, target: zap, sourceHandle: "true", label: "true"}
  - {id: e3, source: cond, target: beep, sourceHandle: "false", label: "false"}
`

type recordSender struct {
	mu    sync.Mutex
	calls []port.Stimulus
}

func (r *recordSender) Trigger(_ context.Context, s port.Stimulus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return nil
}

func fastEngine() *engine.Config {
	return &engine.Config{MaxNodeSteps: 100, EventBuffer: 64}
}

func TestLoadFile_YAMLAndJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlWorkflow), 0o600))

	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, cfg.Nodes, 4)
	assert.Equal(t, types.OperatorGT, cfg.Nodes[1].Data.Operator)
	assert.Equal(t, 5.0, *cfg.Nodes[0].Data.Seconds)

	data, err := Encode(cfg, FormatJSON)
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "wf.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0o600))

	again, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Edges, again.Edges)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`{"nodes":[],"edges":[]}`), FormatJSON)
	assert.Error(t, err, "empty workflow")

	_, err = Decode([]byte(`{"nodes":[{"id":"a","type":"trigger","data":{}}],"extra":1}`), FormatJSON)
	assert.Error(t, err, "unknown field")
}

func TestWorkflowRunner_RunSync(t *testing.T) {
	cfg, err := Decode([]byte(yamlWorkflow), FormatYAML)
	require.NoError(t, err)

	sender := &recordSender{}
	var seen []event.EventType
	res, err := NewWorkflowRunner(fastEngine(), sender).RunSync(context.Background(), cfg, func(ev event.Event) {
		seen = append(seen, ev.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, types.RunOutcomeSucceeded, res.Outcome)
	assert.Equal(t, []string{"start", "cond", "zap"}, res.ExecutedNodes)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, types.ActionTypeZap, sender.calls[0].Mode)
	assert.Contains(t, seen, event.EventTypeBranchChosen)

	// seconds=2 走 false 分支
	res, err = NewWorkflowRunner(fastEngine(), sender).RunSync(context.Background(), cfg, nil,
		engine.WithTriggerData(map[string]any{"seconds": 2}))
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "cond", "beep"}, res.ExecutedNodes)
}

func TestWorkflowRunner_FailedRunReturnsError(t *testing.T) {
	cfg := &types.GraphConfig{Nodes: []types.Node{{ID: "a", Type: types.NodeTypeAction, Data: types.NodeData{ActionType: types.ActionTypeVibe}}}}
	res, err := NewWorkflowRunner(fastEngine(), &recordSender{}).RunSync(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, types.RunOutcomeFailed, res.Outcome)
}

func TestEditorService_Lifecycle(t *testing.T) {
	// 节点停留足够长，保证 Stop 发生在执行过程中
	slow := &engine.Config{NodeDelay: time.Minute, MaxNodeSteps: 100, EventBuffer: 64}
	svc := NewEditorService(slow, &recordSender{}, WithStoreOptions(graph.WithJitter(func() float64 { return 0 })))

	ed, err := svc.Create(nil)
	require.NoError(t, err)

	view := ed.View()
	assert.False(t, view.CanExecute)
	assert.Equal(t, types.RunStatusIdle, view.Status)

	action, err := ed.Store.AddNode(types.NodeTypeAction)
	require.NoError(t, err)
	_, err = ed.Store.Connect(ed.Store.StartID(), action.ID, "", "")
	require.NoError(t, err)
	assert.True(t, ed.View().CanExecute)

	events, err := svc.Preview(context.Background(), ed.ID)
	require.NoError(t, err)

	_, err = svc.Preview(context.Background(), ed.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyRunning)

	stopped, err := svc.StopPreview(ed.ID)
	require.NoError(t, err)
	assert.True(t, stopped)

	var last event.Event
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				continue
			}
			last = ev
		case <-timeout:
			t.Fatal("preview did not finish")
		}
	}
	require.True(t, last.Terminal())
	assert.Equal(t, types.RunOutcomeAborted, last.Result.Outcome)

	assert.Len(t, svc.List(), 1)
	assert.True(t, svc.Delete(ed.ID))
	_, err = svc.Get(ed.ID)
	assert.ErrorIs(t, err, ErrEditorNotFound)
}
