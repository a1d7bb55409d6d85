package workflow

import (
	"context"
	"fmt"

	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/event"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
	"haptix/internal/domain/workflow/port"

	// 自动注册所有节点
	_ "haptix/internal/app/bootstrap"
)

// staticSource 固定的图快照
type staticSource struct {
	cfg *types.GraphConfig
}

func (s staticSource) Config() *types.GraphConfig {
	return &types.GraphConfig{Nodes: types.CloneNodes(s.cfg.Nodes), Edges: types.CloneEdges(s.cfg.Edges)}
}

// WorkflowRunner 对一份工作流配置做预览执行，供 CLI 使用
type WorkflowRunner struct {
	engineConfig *engine.Config
	sender       port.StimulusSender
	observer     engine.Observer
}

// NewWorkflowRunner 创建运行器
func NewWorkflowRunner(config *engine.Config, sender port.StimulusSender) *WorkflowRunner {
	if config == nil {
		config = engine.DefaultConfig()
	}
	return &WorkflowRunner{engineConfig: config, sender: sender}
}

// SetObserver 设置执行观测钩子
func (r *WorkflowRunner) SetObserver(o engine.Observer) {
	r.observer = o
}

// RunFromConfig 执行并返回事件流
func (r *WorkflowRunner) RunFromConfig(ctx context.Context, cfg *types.GraphConfig, opts ...engine.RunOption) (<-chan event.Event, error) {
	factory := node.NewFactory(node.Dependencies{Stimulus: r.sender})
	eng := engine.New(staticSource{cfg: cfg}, factory, r.engineConfig)
	if r.observer != nil {
		eng.SetObserver(r.observer)
	}
	return eng.Execute(ctx, opts...)
}

// RunSync 同步执行，onEvent 可为空
func (r *WorkflowRunner) RunSync(ctx context.Context, cfg *types.GraphConfig, onEvent func(event.Event), opts ...engine.RunOption) (*event.Result, error) {
	events, err := r.RunFromConfig(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	var result *event.Result
	for ev := range events {
		if onEvent != nil {
			onEvent(ev)
		}
		if ev.Terminal() {
			result = ev.Result
		}
	}

	if result == nil {
		return nil, fmt.Errorf("run finished without a result")
	}
	if result.Outcome != types.RunOutcomeSucceeded {
		return result, fmt.Errorf("workflow %s: %s", result.Outcome, result.Error)
	}
	return result, nil
}
