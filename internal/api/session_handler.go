package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"haptix/internal/app/session"
	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
	"haptix/internal/speech"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
)

// SessionHandler 实时会话 API 处理器
type SessionHandler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// NewSessionHandler 创建处理器。checkOrigin 为空时接受任意来源
func NewSessionHandler(sessions *session.Manager, checkOrigin func(r *http.Request) bool) *SessionHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &SessionHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// RegisterRoutes 注册路由
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/stop", h.Stop)
		r.Post("/transcript", h.Transcript)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/ws", h.Stream)
	})
}

type startSessionRequest struct {
	Workflow types.GraphConfig `json:"workflow"`
}

type stopSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type transcriptRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Text      string `json:"text"`
	// 缺省视为已提交
	Committed *bool `json:"committed,omitempty"`
}

func (r transcriptRequest) transcript() speech.Transcript {
	committed := true
	if r.Committed != nil {
		committed = *r.Committed
	}
	return speech.Transcript{Text: r.Text, Committed: committed}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Start(r.Context(), req.Workflow)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"issues": verr.Issues})
			return
		}
		applog.Error("[SessionHandler] start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	applog.Info("[SessionHandler] session started", "session_id", sess.ID, "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"config":     sess.Config,
	})
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.sessions.Stop(r.Context(), req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.sessions.HandleTranscript(r.Context(), req.SessionID, req.transcript())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Stream 会话的双向实时通道：客户端发送转写，服务端推送每条转写的处理结果。
// 会话停止时服务端关闭连接
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if sess.Status != port.SessionStatusActive {
		writeError(w, http.StatusConflict, session.ErrSessionStopped.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warn("[SessionHandler] websocket upgrade failed", "session_id", id, "error", err)
		return
	}

	outcomes, unsubscribe := h.sessions.Subscribe(id)
	logger := applog.With("component", "session_stream", "session_id", id)
	logger.Info("[SessionStream] client connected", "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.readPump(r.Context(), conn, id, logger, done)
	h.writePump(conn, outcomes, done)

	unsubscribe()
	conn.Close()
	logger.Info("[SessionStream] client disconnected")
}

type streamMessage struct {
	Text      string `json:"text"`
	Committed *bool  `json:"committed,omitempty"`
}

// readPump 读取客户端转写并交给会话管理器；结果经订阅通道回到 writePump
func (h *SessionHandler) readPump(ctx context.Context, conn *websocket.Conn, id string, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[SessionStream] read failed", "error", err)
			}
			return
		}
		req := transcriptRequest{SessionID: id, Text: msg.Text, Committed: msg.Committed}
		if _, err := h.sessions.HandleTranscript(ctx, id, req.transcript()); err != nil {
			logger.Warn("[SessionStream] transcript rejected", "error", err)
			if errors.Is(err, session.ErrSessionStopped) || errors.Is(err, port.ErrSessionNotFound) {
				return
			}
		}
	}
}

func (h *SessionHandler) writePump(conn *websocket.Conn, outcomes <-chan session.Outcome, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case out, ok := <-outcomes:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
				return
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionStopped):
		writeError(w, http.StatusConflict, err.Error())
	default:
		applog.Error("[SessionHandler] session operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session operation failed")
	}
}
