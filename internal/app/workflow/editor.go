package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/event"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/node"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
	applog "haptix/internal/platform/log"
)

// ErrEditorNotFound 编辑器不存在
var ErrEditorNotFound = errors.New("editor not found")

// Editor 一个编辑中的工作流：图存储 + 绑定在其上的预览引擎
type Editor struct {
	ID        string
	Store     *graph.Store
	Engine    *engine.GraphEngine
	CreatedAt time.Time
}

// View 编辑器的完整只读视图
type View struct {
	ID            string          `json:"id"`
	Nodes         []types.Node    `json:"nodes"`
	Edges         []types.Edge    `json:"edges"`
	TriggerConfig trigger.Config  `json:"trigger_config"`
	CanExecute    bool            `json:"can_execute"`
	Issues        []graph.Issue   `json:"issues"`
	Status        types.RunStatus `json:"status"`
	LastResult    *event.Result   `json:"last_result,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// View 生成当前视图
func (e *Editor) View() View {
	nodes, edges := e.Store.Snapshot()
	issues := graph.Validate(nodes, edges)
	if issues == nil {
		issues = []graph.Issue{}
	}
	return View{
		ID:            e.ID,
		Nodes:         nodes,
		Edges:         edges,
		TriggerConfig: trigger.BuildConfig(nodes, edges),
		CanExecute:    len(issues) == 0,
		Issues:        issues,
		Status:        e.Engine.Status(),
		LastResult:    e.Engine.LastResult(),
		CreatedAt:     e.CreatedAt,
	}
}

// EditorService 管理进程内的编辑器
type EditorService struct {
	mu           sync.RWMutex
	editors      map[string]*Editor
	engineConfig *engine.Config
	sender       port.StimulusSender
	observer     engine.Observer
	storeOpts    []graph.Option
	logger       *slog.Logger
}

// EditorOption 服务选项
type EditorOption func(*EditorService)

// WithObserver 为所有预览引擎设置观测钩子
func WithObserver(o engine.Observer) EditorOption {
	return func(s *EditorService) { s.observer = o }
}

// WithStoreOptions 创建图存储时附加的选项
func WithStoreOptions(opts ...graph.Option) EditorOption {
	return func(s *EditorService) { s.storeOpts = append(s.storeOpts, opts...) }
}

// NewEditorService 创建编辑器服务
func NewEditorService(engineConfig *engine.Config, sender port.StimulusSender, opts ...EditorOption) *EditorService {
	if engineConfig == nil {
		engineConfig = engine.DefaultConfig()
	}
	s := &EditorService{
		editors:      make(map[string]*Editor),
		engineConfig: engineConfig,
		sender:       sender,
		logger:       applog.With("component", "editor_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 新建编辑器；cfg 非空时载入该工作流
func (s *EditorService) Create(cfg *types.GraphConfig) (*Editor, error) {
	store := graph.NewStore(s.storeOpts...)
	if cfg != nil {
		if err := store.Load(cfg); err != nil {
			return nil, fmt.Errorf("load workflow: %w", err)
		}
	}

	// 每个编辑器独立的引擎配置副本
	engCfg := *s.engineConfig
	eng := engine.New(store, node.NewFactory(node.Dependencies{Stimulus: s.sender}), &engCfg)
	if s.observer != nil {
		eng.SetObserver(s.observer)
	}

	ed := &Editor{
		ID:        uuid.New().String(),
		Store:     store,
		Engine:    eng,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.editors[ed.ID] = ed
	s.mu.Unlock()

	s.logger.Info("[EditorService] editor created", "editor_id", ed.ID, "loaded", cfg != nil)
	return ed, nil
}

// Get 获取编辑器
func (s *EditorService) Get(id string) (*Editor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ed, ok := s.editors[id]
	if !ok {
		return nil, ErrEditorNotFound
	}
	return ed, nil
}

// List 列出全部编辑器（按创建时间）
func (s *EditorService) List() []*Editor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Editor, 0, len(s.editors))
	for _, ed := range s.editors {
		out = append(out, ed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete 删除编辑器，先停止其预览
func (s *EditorService) Delete(id string) bool {
	s.mu.Lock()
	ed, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()
	if ok {
		ed.Engine.Stop()
		s.logger.Info("[EditorService] editor deleted", "editor_id", id)
	}
	return ok
}

// Preview 开始一次预览执行
func (s *EditorService) Preview(ctx context.Context, id string, opts ...engine.RunOption) (<-chan event.Event, error) {
	ed, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return ed.Engine.Execute(ctx, opts...)
}

// StopPreview 停止预览。没有在执行时返回 false
func (s *EditorService) StopPreview(id string) (bool, error) {
	ed, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return ed.Engine.Stop(), nil
}
