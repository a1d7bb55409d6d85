package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"haptix/internal/app/workflow"
	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/graph"
	types "haptix/internal/domain/workflow/model"
	applog "haptix/internal/platform/log"
)

// EditorHandler 编辑器 API 处理器
type EditorHandler struct {
	editors        *workflow.EditorService
	previewTimeout time.Duration
}

// NewEditorHandler 创建处理器
func NewEditorHandler(editors *workflow.EditorService, previewTimeout time.Duration) *EditorHandler {
	if previewTimeout <= 0 {
		previewTimeout = 5 * time.Minute
	}
	return &EditorHandler{editors: editors, previewTimeout: previewTimeout}
}

// RegisterRoutes 注册路由
func (h *EditorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/editors", func(r chi.Router) {
		r.Post("/", h.CreateEditor)
		r.Get("/", h.ListEditors)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetEditor)
			r.Delete("/", h.DeleteEditor)
			r.Put("/workflow", h.LoadWorkflow)
			r.Post("/reset", h.Reset)

			r.Post("/nodes", h.AddNode)
			r.Patch("/nodes/{nodeID}", h.SetField)
			r.Delete("/nodes/{nodeID}", h.RemoveNode)
			r.Get("/nodes/{nodeID}/parameters", h.AvailableParameters)

			r.Post("/edges", h.Connect)
			r.Delete("/edges/{edgeID}", h.RemoveEdge)

			r.Get("/trigger-config", h.TriggerConfig)
			r.Get("/validate", h.Validate)
			r.Post("/run", h.RunPreview)
			r.Post("/stop", h.StopPreview)
		})
	})
}

type createEditorRequest struct {
	Workflow *types.GraphConfig `json:"workflow,omitempty"`
}

type addNodeRequest struct {
	Type types.NodeType `json:"type" validate:"required,oneof=trigger action conditional"`
}

type connectRequest struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

type setFieldRequest struct {
	Field graph.Field `json:"field" validate:"required"`
	Value any         `json:"value"`
}

type runPreviewRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// editor 取路径中的编辑器，不存在时写 404
func (h *EditorHandler) editor(w http.ResponseWriter, r *http.Request) (*workflow.Editor, bool) {
	ed, err := h.editors.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ed, true
}

func (h *EditorHandler) CreateEditor(w http.ResponseWriter, r *http.Request) {
	var req createEditorRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ed, err := h.editors.Create(req.Workflow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ed.View())
}

func (h *EditorHandler) ListEditors(w http.ResponseWriter, r *http.Request) {
	editors := h.editors.List()
	views := make([]workflow.View, 0, len(editors))
	for _, ed := range editors {
		views = append(views, ed.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *EditorHandler) GetEditor(w http.ResponseWriter, r *http.Request) {
	if ed, ok := h.editor(w, r); ok {
		writeJSON(w, http.StatusOK, ed.View())
	}
}

func (h *EditorHandler) DeleteEditor(w http.ResponseWriter, r *http.Request) {
	if !h.editors.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, workflow.ErrEditorNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *EditorHandler) LoadWorkflow(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	var cfg types.GraphConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := ed.Store.Load(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

func (h *EditorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	ed.Store.Reset()
	writeJSON(w, http.StatusOK, ed.View())
}

func (h *EditorHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	var req addNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := ed.Store.AddNode(req.Type)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *EditorHandler) SetField(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := ed.Store.Apply(graph.Mutation{NodeID: chi.URLParam(r, "nodeID"), Field: req.Field, Value: req.Value})
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *EditorHandler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	// 删除不存在的节点是无操作
	removed := ed.Store.RemoveNode(chi.URLParam(r, "nodeID"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *EditorHandler) AvailableParameters(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ed.Store.AvailableParameters(chi.URLParam(r, "nodeID")))
}

func (h *EditorHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := ed.Store.Connect(req.Source, req.Target, req.SourceHandle, req.TargetHandle)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *EditorHandler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	removed := ed.Store.RemoveEdge(chi.URLParam(r, "edgeID"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *EditorHandler) TriggerConfig(w http.ResponseWriter, r *http.Request) {
	if ed, ok := h.editor(w, r); ok {
		writeJSON(w, http.StatusOK, ed.View().TriggerConfig)
	}
}

func (h *EditorHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}
	view := ed.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"can_execute": view.CanExecute,
		"issues":      view.Issues,
	})
}

// --- 预览执行 (SSE) ---

func (h *EditorHandler) RunPreview(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r)
	if !ok {
		return
	}

	var req runPreviewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// 客户端断开即取消执行
	execCtx, cancel := context.WithTimeout(r.Context(), h.previewTimeout)
	defer cancel()

	var opts []engine.RunOption
	if req.TriggerData != nil {
		opts = append(opts, engine.WithTriggerData(req.TriggerData))
	}
	events, err := h.editors.Preview(execCtx, ed.ID, opts...)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		sseWriteEvent(w, flusher, string(ev.Type), ev)
	}
	applog.Debug("[EditorHandler] preview stream closed", "editor_id", ed.ID)
}

func (h *EditorHandler) StopPreview(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.editors.StopPreview(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

// writeGraphError 图存储错误映射为 HTTP 状态码
func writeGraphError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, graph.ErrBranchTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// --- SSE 辅助 ---

func sseWriteEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(jsonData))
	flusher.Flush()
}
