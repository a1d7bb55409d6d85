package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"haptix/internal/domain/workflow/event"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
	"haptix/internal/domain/workflow/runtime"
	applog "haptix/internal/platform/log"
)

var (
	// ErrAlreadyRunning 引擎已有一次执行在进行中
	ErrAlreadyRunning = errors.New("workflow execution already running")

	// ErrMaxStepsExceeded 超过最大节点步数（通常是图中有环）
	ErrMaxStepsExceeded = errors.New("max node steps exceeded")
)

// Config 引擎配置
type Config struct {
	NodeDelay    time.Duration // 节点高亮后的停留时间
	EdgeDelay    time.Duration // 边高亮后的停留时间
	BranchDelay  time.Duration // 条件分支高亮后的停留时间
	MaxNodeSteps int           // 最大节点执行步数
	EventBuffer  int           // 事件 channel 缓冲大小
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		NodeDelay:    500 * time.Millisecond,
		EdgeDelay:    300 * time.Millisecond,
		BranchDelay:  200 * time.Millisecond,
		MaxNodeSteps: 100,
		EventBuffer:  64,
	}
}

// GraphSource 执行时读取图快照的来源（graph.Store 实现了该接口）
type GraphSource interface {
	Config() *types.GraphConfig
}

// Observer 执行过程观测钩子（指标采集）
type Observer interface {
	NodeVisited(nodeType types.NodeType)
	RunFinished(outcome types.RunOutcome, elapsed time.Duration)
}

// RunOption 单次执行选项
type RunOption func(*runOptions)

type runOptions struct {
	triggerData map[string]any
}

// WithTriggerData 在起始触发器数据之上追加触发参数
func WithTriggerData(values map[string]any) RunOption {
	return func(o *runOptions) {
		o.triggerData = values
	}
}

// GraphEngine 预览执行引擎：从起始触发器出发深度优先遍历图，
// 按固定节奏发出高亮事件并触发动作
type GraphEngine struct {
	source   GraphSource
	factory  *node.Factory
	config   *Config
	observer Observer
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	lastResult *event.Result
}

// New 创建执行引擎
func New(source GraphSource, factory *node.Factory, config *Config) *GraphEngine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	return &GraphEngine{
		source:  source,
		factory: factory,
		config:  config,
		logger:  applog.With("component", "graph_engine"),
	}
}

// SetObserver 设置观测钩子
func (e *GraphEngine) SetObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// Running 是否正在执行
func (e *GraphEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status 引擎状态
func (e *GraphEngine) Status() types.RunStatus {
	if e.Running() {
		return types.RunStatusRunning
	}
	return types.RunStatusIdle
}

// LastResult 最近一次执行的结果
func (e *GraphEngine) LastResult() *event.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// Stop 取消当前执行。已发出的动作请求不会被撤回；空闲时无操作
func (e *GraphEngine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Execute 对当前图做一次预览执行，返回事件流。
// 调用方需要读取 channel 直到关闭；执行中再次调用返回 ErrAlreadyRunning
func (e *GraphEngine) Execute(ctx context.Context, opts ...RunOption) (<-chan event.Event, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	observer := e.observer
	e.mu.Unlock()

	g := graph.New(e.source.Config())
	runID := uuid.New().String()
	out := make(chan event.Event, e.config.EventBuffer)

	go func() {
		defer close(out)
		defer cancel()

		w := &walk{
			engine:   e,
			graph:    g,
			out:      out,
			observer: observer,
			logger:   e.logger.With("run_id", runID),
		}
		result := w.run(runCtx, runID, ro)

		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.lastResult = result
		e.mu.Unlock()

		if observer != nil {
			observer.RunFinished(result.Outcome, time.Duration(result.ElapsedMs)*time.Millisecond)
		}
		out <- event.NewRunFinishedEvent(result)
	}()

	return out, nil
}

// walk 单次执行的遍历状态
type walk struct {
	engine   *GraphEngine
	graph    *graph.Graph
	state    *runtime.RunState
	out      chan<- event.Event
	observer Observer
	logger   *slog.Logger
}

type stepKind int

const (
	stepVisit stepKind = iota
	stepEdge
	stepBranch
)

// step 工作栈中的一项：访问节点，或经过一条边后访问其目标
type step struct {
	kind   stepKind
	nodeID string
	edge   types.Edge
	branch types.BranchHandle
}

func (w *walk) run(ctx context.Context, runID string, ro runOptions) *event.Result {
	start, ok := w.graph.Start()
	if !ok {
		w.logger.Error("[GraphEngine] start trigger node not found, run aborted before traversal")
		w.state = runtime.NewRunState(runID, nil)
		return w.state.Result(types.RunOutcomeFailed, graph.ErrStartNodeMissing)
	}

	tc := runtime.SeedFromStart(start)
	if ro.triggerData != nil {
		tc.Merge(ro.triggerData)
	}
	w.state = runtime.NewRunState(runID, tc)
	ctx = runtime.WithRunState(ctx, w.state)

	w.logger.Info("[GraphEngine] run started", "start_id", start.ID, "nodes", len(w.graph.Nodes), "edges", len(w.graph.Edges))
	w.emit(event.NewRunStartedEvent(runID, start.ID))

	stack := []step{{kind: stepVisit, nodeID: start.ID}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return w.aborted()
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch cur.kind {
		case stepEdge, stepBranch:
			w.state.RecordEdge(cur.edge.ID)
			delay := w.engine.config.EdgeDelay
			if cur.kind == stepBranch {
				w.emit(event.NewBranchChosenEvent(runID, cur.edge.Source, cur.branch, cur.edge))
				delay = w.engine.config.BranchDelay
			} else {
				w.emit(event.NewEdgeTraversedEvent(runID, cur.edge))
			}
			if err := sleep(ctx, delay); err != nil {
				return w.aborted()
			}
			stack = append(stack, step{kind: stepVisit, nodeID: cur.edge.Target})

		case stepVisit:
			next, err := w.visit(ctx, cur.nodeID)
			if err != nil {
				if errors.Is(err, ErrMaxStepsExceeded) {
					w.logger.Error("[GraphEngine] run failed", "error", err)
					return w.state.Result(types.RunOutcomeFailed, err)
				}
				return w.aborted()
			}
			// 逆序压栈，保证按出边顺序依次完成整棵子树
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, next[i])
			}
		}
	}

	res := w.state.Result(types.RunOutcomeSucceeded, nil)
	w.logger.Info("[GraphEngine] run succeeded", "steps", res.Steps, "action_failures", res.ActionFailures)
	return res
}

func (w *walk) aborted() *event.Result {
	w.logger.Info("[GraphEngine] run aborted", "steps", w.state.NodeRunSteps.Load())
	return w.state.Result(types.RunOutcomeAborted, context.Canceled)
}

// visit 访问一个节点：高亮 -> 停留 -> 执行 -> 返回后续步骤
func (w *walk) visit(ctx context.Context, nodeID string) ([]step, error) {
	n, ok := w.graph.Node(nodeID)
	if !ok {
		// 悬空边：静默跳过
		w.logger.Debug("[GraphEngine] edge target not found, skipping", "node_id", nodeID)
		return nil, nil
	}

	if int(w.state.NodeRunSteps.Load()) >= w.engine.config.MaxNodeSteps {
		return nil, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, w.engine.config.MaxNodeSteps)
	}
	w.state.RecordNode(n.ID)
	if w.observer != nil {
		w.observer.NodeVisited(n.Type)
	}

	w.emit(event.NewNodeEnteredEvent(w.state.RunID, n))
	if err := sleep(ctx, w.engine.config.NodeDelay); err != nil {
		return nil, err
	}

	exec, err := w.engine.factory.CreateNode(n)
	if err != nil {
		w.logger.Error("[GraphEngine] cannot create node executor, skipping subtree", "node_id", n.ID, "error", err)
		return nil, nil
	}

	result, err := exec.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.logger.Error("[GraphEngine] node run error, skipping subtree", "node_id", n.ID, "error", err)
		return nil, nil
	}

	if n.Type == types.NodeTypeAction && n.Data.ActionType.IsStimulus() {
		if result.Status == node.StatusFailed {
			w.state.ActionFailures.Add(1)
			w.logger.Warn("[GraphEngine] action failed, continuing", "node_id", n.ID, "error", result.Error)
			w.emit(event.NewActionFailedEvent(w.state.RunID, n, result.Error))
		} else {
			w.emit(event.NewActionSentEvent(w.state.RunID, n))
		}
	}

	if n.Type == types.NodeTypeConditional {
		edge, ok := w.graph.BranchEdge(n.ID, result.Branch)
		if !ok {
			w.logger.Debug("[GraphEngine] no edge for branch, branch ends", "node_id", n.ID, "branch", result.Branch)
			return nil, nil
		}
		return []step{{kind: stepBranch, edge: edge, branch: result.Branch}}, nil
	}

	outgoing := w.graph.GetOutgoingEdges(n.ID)
	next := make([]step, 0, len(outgoing))
	for _, e := range outgoing {
		next = append(next, step{kind: stepEdge, edge: e})
	}
	return next, nil
}

func (w *walk) emit(ev event.Event) {
	w.out <- ev
}

// sleep 可取消的等待；d <= 0 时只检查取消
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
