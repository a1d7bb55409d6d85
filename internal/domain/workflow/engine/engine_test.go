package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/event"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
	_ "haptix/internal/domain/workflow/node/action"
	_ "haptix/internal/domain/workflow/node/conditional"
	_ "haptix/internal/domain/workflow/node/trigger"
	"haptix/internal/domain/workflow/port"
)

type mockSender struct {
	mu      sync.Mutex
	calls   []port.Stimulus
	fail    map[types.ActionType]bool
	started chan struct{}
	block   chan struct{}
}

func (m *mockSender) Trigger(ctx context.Context, s port.Stimulus) error {
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
	if m.fail[s.Mode] {
		return errors.New("backend returned 500")
	}
	return nil
}

func (m *mockSender) modes() []types.ActionType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ActionType, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Mode)
	}
	return out
}

// staticSource 直接返回固定配置
type staticSource struct{ cfg *types.GraphConfig }

func (s staticSource) Config() *types.GraphConfig { return s.cfg }

func fastConfig() *engine.Config {
	return &engine.Config{MaxNodeSteps: 100, EventBuffer: 256}
}

func newEngine(cfg *types.GraphConfig, sender port.StimulusSender, conf *engine.Config) *engine.GraphEngine {
	if conf == nil {
		conf = fastConfig()
	}
	factory := node.NewFactory(node.Dependencies{Stimulus: sender})
	return engine.New(staticSource{cfg: cfg}, factory, conf)
}

func collect(t *testing.T, ch <-chan event.Event) []event.Event {
	t.Helper()
	var events []event.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for engine events")
		}
	}
}

func lastResult(t *testing.T, events []event.Event) *event.Result {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if !last.Terminal() || last.Result == nil {
		t.Fatalf("last event is not terminal: %+v", last)
	}
	return last.Result
}

func visited(events []event.Event) []string {
	var ids []string
	for _, ev := range events {
		if ev.Type == event.EventTypeNodeEntered {
			ids = append(ids, ev.NodeID)
		}
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TestConditionalBranching 条件为真时只执行 true 分支
func TestConditionalBranching(t *testing.T) {
	dsl := `{
		"nodes": [
			{"id": "start", "type": "trigger", "data": {"triggerType": "timer", "seconds": 5, "isStart": true}},
			{"id": "cond", "type": "conditional", "data": {"parameter": "value", "operator": ">", "compareValue": "50"}},
			{"id": "actionA", "type": "action", "data": {"actionType": "vibe", "stimulusType": "single"}},
			{"id": "actionB", "type": "action", "data": {"actionType": "zap", "stimulusType": "double"}}
		],
		"edges": [
			{"id": "e0", "source": "start", "target": "cond"},
			{"id": "e1", "source": "cond", "target": "actionA", "sourceHandle": "true"},
			{"id": "e2", "source": "cond", "target": "actionB", "sourceHandle": "false"}
		]
	}`

	var cfg types.GraphConfig
	if err := json.Unmarshal([]byte(dsl), &cfg); err != nil {
		t.Fatalf("invalid dsl: %v", err)
	}

	tests := []struct {
		name     string
		value    any
		wantNode string
		wantMode types.ActionType
		skipNode string
	}{
		{"true_path", 75, "actionA", types.ActionTypeVibe, "actionB"},
		{"nan_path", "abc", "actionB", types.ActionTypeZap, "actionA"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &mockSender{}
			eng := newEngine(&cfg, sender, nil)

			ch, err := eng.Execute(context.Background(), engine.WithTriggerData(map[string]any{"value": tc.value}))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			events := collect(t, ch)
			ids := visited(events)

			if !contains(ids, tc.wantNode) {
				t.Errorf("expected %s to be visited, got %v", tc.wantNode, ids)
			}
			if contains(ids, tc.skipNode) {
				t.Errorf("%s must never be visited, got %v", tc.skipNode, ids)
			}
			if modes := sender.modes(); len(modes) != 1 || modes[0] != tc.wantMode {
				t.Errorf("expected one %s stimulus, got %v", tc.wantMode, modes)
			}

			res := lastResult(t, events)
			if res.Outcome != types.RunOutcomeSucceeded {
				t.Errorf("expected succeeded, got %s", res.Outcome)
			}
			t.Logf("✅ %s visited %v via edges %v", tc.name, res.ExecutedNodes, res.ExecutedEdges)
		})
	}
}

// TestFanOutIsSerializedDepthFirst 扇出按出边顺序依次完成整棵子树
func TestFanOutIsSerializedDepthFirst(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{Seconds: types.Float(5)}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "start", "").
		AddNode("a_child", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeBeep}, "a", "").
		AddNode("b", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeZap}, "start", "").
		Build()

	sender := &mockSender{}
	eng := newEngine(cfg, sender, nil)
	ch, err := eng.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	events := collect(t, ch)

	want := []string{"start", "a", "a_child", "b"}
	got := visited(events)
	if len(got) != len(want) {
		t.Fatalf("visit order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visit order = %v, want %v", got, want)
		}
	}

	// 高亮顺序：节点 -> 边 -> 节点，交替出现
	var trace []event.EventType
	for _, ev := range events {
		if ev.Type == event.EventTypeNodeEntered || ev.Type == event.EventTypeEdgeTraversed {
			trace = append(trace, ev.Type)
		}
	}
	for i := 1; i < len(trace); i++ {
		if trace[i] == trace[i-1] && trace[i] == event.EventTypeEdgeTraversed {
			t.Fatalf("two edges highlighted back to back: %v", trace)
		}
	}

	res := lastResult(t, events)
	if len(res.ExecutedEdges) != 3 {
		t.Errorf("expected 3 executed edges, got %v", res.ExecutedEdges)
	}
}

// TestActionFailureDoesNotAbort 动作失败记录后继续遍历
func TestActionFailureDoesNotAbort(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{}).
		AddNode("zap", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeZap}, "", "").
		AddNode("vibe", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "", "").
		Build()

	sender := &mockSender{fail: map[types.ActionType]bool{types.ActionTypeZap: true}}
	eng := newEngine(cfg, sender, nil)
	ch, _ := eng.Execute(context.Background())
	events := collect(t, ch)

	var failed int
	for _, ev := range events {
		if ev.Type == event.EventTypeActionFailed {
			failed++
			if ev.NodeID != "zap" || ev.Error == "" {
				t.Errorf("unexpected action_failed event %+v", ev)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected one action_failed event, got %d", failed)
	}
	if !contains(visited(events), "vibe") {
		t.Fatal("traversal must continue after an action failure")
	}

	res := lastResult(t, events)
	if res.Outcome != types.RunOutcomeSucceeded || res.ActionFailures != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

// TestMissingStartNode 没有起始节点时直接失败
func TestMissingStartNode(t *testing.T) {
	cfg := &types.GraphConfig{Nodes: []types.Node{
		{ID: "a", Type: types.NodeTypeAction, Data: types.NodeData{ActionType: types.ActionTypeVibe}},
	}}
	sender := &mockSender{}
	eng := newEngine(cfg, sender, nil)

	ch, err := eng.Execute(context.Background())
	if err != nil {
		t.Fatalf("missing start is reported as an event, not an error: %v", err)
	}
	events := collect(t, ch)
	if len(events) != 1 || events[0].Type != event.EventTypeRunFailed {
		t.Fatalf("expected a single run_failed event, got %+v", events)
	}
	if events[0].Error != graph.ErrStartNodeMissing.Error() {
		t.Errorf("unexpected error %q", events[0].Error)
	}
	if len(sender.modes()) != 0 {
		t.Fatal("no action may run without a start node")
	}
}

// TestDanglingEdgeIsSkipped 指向不存在节点的边被静默跳过
func TestDanglingEdgeIsSkipped(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "", "").
		Build()
	cfg.Edges = append([]types.Edge{{ID: "ghost_edge", Source: "start", Target: "ghost"}}, cfg.Edges...)

	sender := &mockSender{}
	eng := newEngine(cfg, sender, nil)
	ch, _ := eng.Execute(context.Background())
	events := collect(t, ch)

	if res := lastResult(t, events); res.Outcome != types.RunOutcomeSucceeded {
		t.Fatalf("expected succeeded, got %+v", res)
	}
	if got := visited(events); len(got) != 2 {
		t.Fatalf("expected start and a visited, got %v", got)
	}
}

// TestCycleHitsStepLimit 有环的图在步数上限处失败
func TestCycleHitsStepLimit(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeWait, Seconds: types.Float(0)}, "", "").
		Connect("a", "start", "").
		Build()

	conf := fastConfig()
	conf.MaxNodeSteps = 10
	eng := newEngine(cfg, &mockSender{}, conf)
	ch, _ := eng.Execute(context.Background())
	events := collect(t, ch)

	res := lastResult(t, events)
	if res.Outcome != types.RunOutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if res.Steps != 10 {
		t.Errorf("expected 10 steps, got %d", res.Steps)
	}
}

// TestStopMidTraversal Stop 之后不再访问新节点，已发出的请求不撤回
func TestStopMidTraversal(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "", "").
		AddNode("b", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeZap}, "", "").
		Build()

	sender := &mockSender{started: make(chan struct{}, 1), block: make(chan struct{})}
	eng := newEngine(cfg, sender, nil)
	ch, err := eng.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// 等待 a 的刺激请求发出（被阻塞在后端）
	select {
	case <-sender.started:
	case <-time.After(5 * time.Second):
		t.Fatal("action a never reached the backend")
	}

	if !eng.Stop() {
		t.Fatal("Stop should cancel a running execution")
	}
	close(sender.block)
	events := collect(t, ch)

	if contains(visited(events), "b") {
		t.Fatalf("no node may be visited after stop, got %v", visited(events))
	}
	if modes := sender.modes(); len(modes) != 1 || modes[0] != types.ActionTypeVibe {
		t.Fatalf("in-flight request must complete, got %v", modes)
	}
	res := lastResult(t, events)
	if res.Outcome != types.RunOutcomeAborted {
		t.Fatalf("expected aborted, got %s", res.Outcome)
	}
	if eng.Running() {
		t.Fatal("engine must be idle after the run ends")
	}
	t.Logf("✅ aborted after %d steps", res.Steps)
}

// TestExecuteIsNotReentrant 执行中再次 Execute 返回 ErrAlreadyRunning
func TestExecuteIsNotReentrant(t *testing.T) {
	cfg := graph.NewBuilder().
		AddStart("start", types.NodeData{}).
		AddNode("a", types.NodeTypeAction, types.NodeData{ActionType: types.ActionTypeVibe}, "", "").
		Build()

	conf := fastConfig()
	conf.NodeDelay = 50 * time.Millisecond
	eng := newEngine(cfg, &mockSender{}, conf)

	ch, err := eng.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if eng.Status() != types.RunStatusRunning {
		t.Fatal("expected running status")
	}
	if _, err := eng.Execute(context.Background()); !errors.Is(err, engine.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	collect(t, ch)

	if eng.Stop() {
		t.Fatal("Stop on an idle engine is a no-op")
	}
	ch, err = eng.Execute(context.Background())
	if err != nil {
		t.Fatalf("engine must accept a new run once idle: %v", err)
	}
	collect(t, ch)
	if eng.LastResult() == nil || eng.LastResult().Outcome != types.RunOutcomeSucceeded {
		t.Fatalf("unexpected last result %+v", eng.LastResult())
	}
}

// TestTriggerContextSeededFromStart 条件节点可以读取起始触发器的 seconds
func TestTriggerContextSeededFromStart(t *testing.T) {
	store := graph.NewStore()
	cond, _ := store.AddNode(types.NodeTypeConditional)
	act, _ := store.AddNode(types.NodeTypeAction)
	if _, err := store.SetField(cond.ID, graph.FieldParameter, "seconds"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SetField(cond.ID, graph.FieldCompareValue, "3"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Connect(store.StartID(), cond.ID, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Connect(cond.ID, act.ID, "true", ""); err != nil {
		t.Fatal(err)
	}

	sender := &mockSender{}
	eng := engine.New(store, node.NewFactory(node.Dependencies{Stimulus: sender}), fastConfig())
	ch, _ := eng.Execute(context.Background())
	events := collect(t, ch)

	if !contains(visited(events), act.ID) {
		t.Fatalf("seconds=5 > 3 must take the true branch, visited %v", visited(events))
	}
	for _, ev := range events {
		if ev.Type == event.EventTypeBranchChosen && ev.Branch != types.BranchTrue {
			t.Fatalf("unexpected branch %q", ev.Branch)
		}
	}
}
