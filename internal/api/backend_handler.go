package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
	"haptix/internal/speech"
)

// BackendHandler 刺激后端端点。响应体保持裸 JSON（不套 APIResponse），
// 与浏览器端和 stimulus.Client 的约定一致
type BackendHandler struct {
	sender   port.StimulusSender
	keywords port.KeywordChecker
	tokens   *speech.TokenIssuer
	triggers port.TriggerRepository
}

// NewBackendHandler 创建处理器。tokens / triggers 可为空
func NewBackendHandler(sender port.StimulusSender, keywords port.KeywordChecker, tokens *speech.TokenIssuer, triggers port.TriggerRepository) *BackendHandler {
	return &BackendHandler{sender: sender, keywords: keywords, tokens: tokens, triggers: triggers}
}

// RegisterRoutes 注册路由
func (h *BackendHandler) RegisterRoutes(r chi.Router) {
	r.Post("/trigger-stimulus", h.TriggerStimulus)
	r.Post("/check-text", h.CheckText)
	r.Get("/scribe-token", h.ScribeToken)
	r.Get("/triggers", h.ListTriggers)
}

// TriggerStimulus 播放预设；未知预设按 value/repeats/interval 直接下发。播放完毕才返回
func (h *BackendHandler) TriggerStimulus(w http.ResponseWriter, r *http.Request) {
	var req port.Stimulus
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sender.Trigger(r.Context(), req); err != nil {
		applog.Error("[Backend] trigger stimulus failed", "mode", req.Mode, "type", req.Type, "error", err)
		writeError(w, http.StatusBadGateway, "stimulus delivery failed")
		return
	}
	writeRaw(w, http.StatusOK, "Ok")
}

// CheckText 不区分大小写的包含判断，命中时播放对应预设
func (h *BackendHandler) CheckText(w http.ResponseWriter, r *http.Request) {
	var req port.CheckTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exists, err := h.keywords.CheckText(r.Context(), req)
	if err != nil {
		applog.Error("[Backend] check text failed", "search", req.SearchString, "error", err)
		writeError(w, http.StatusBadGateway, "stimulus delivery failed")
		return
	}
	writeRaw(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *BackendHandler) ScribeToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, speech.ErrNotConfigured.Error())
		return
	}
	tok, err := h.tokens.Issue(r.Context())
	if err != nil {
		if errors.Is(err, speech.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		applog.Error("[Backend] scribe token failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to issue scribe token")
		return
	}
	writeRaw(w, http.StatusOK, map[string]string{"token": tok.Token, "model_id": h.tokens.ModelID()})
}

// ListTriggers 触发记录，支持 ?session_id= &matched= &limit=
func (h *BackendHandler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	if h.triggers == nil {
		writeRaw(w, http.StatusOK, []*port.TriggerRecord{})
		return
	}

	q := r.URL.Query()
	params := port.ListTriggersParams{SessionID: q.Get("session_id")}
	params.Limit, _ = strconv.Atoi(q.Get("limit"))
	if m := q.Get("matched"); m != "" {
		matched, err := strconv.ParseBool(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "matched must be a boolean")
			return
		}
		params.Matched = &matched
	}

	records, err := h.triggers.List(r.Context(), params)
	if err != nil {
		applog.Error("[Backend] list triggers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list triggers")
		return
	}
	if records == nil {
		records = []*port.TriggerRecord{}
	}
	writeRaw(w, http.StatusOK, records)
}

func writeRaw(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
