package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"haptix/internal/app/session"
	"haptix/internal/app/workflow"
	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
	"haptix/internal/platform/metrics"
	"haptix/internal/speech"
)

// ServerConfig 服务配置
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PreviewTimeout time.Duration // 预览执行超时（SSE）
	AllowedOrigins []string      // 为空时允许任意来源
	JWTSecret      string        // 为空时 /api/* 不鉴权
	JWTIssuer      string
}

// DefaultServerConfig 默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Minute, // SSE 需要较长写超时
		PreviewTimeout: 5 * time.Minute,
	}
}

// Dependencies 服务依赖。除 Sender / Keywords 外均可为空，对应路由随之关闭
type Dependencies struct {
	Editors  *workflow.EditorService
	Sessions *session.Manager
	Sender   port.StimulusSender
	Keywords port.KeywordChecker
	Tokens   *speech.TokenIssuer
	Triggers port.TriggerRepository
	Metrics  *metrics.Collector
}

// Server HTTP 服务器
type Server struct {
	config  *ServerConfig
	deps    Dependencies
	httpSrv *http.Server
}

// NewServer 创建服务器
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{config: config, deps: deps}
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	applog.Infof("🚀 Haptix server starting on %s", addr)
	return s.httpSrv.ListenAndServe()
}

// Stop 优雅停机
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Handler 返回 HTTP Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.AllowedOrigins))
	if s.deps.Metrics != nil {
		r.Use(metricsMiddleware(s.deps.Metrics))
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// 浏览器端直接调用的刺激后端端点，不鉴权
	NewBackendHandler(s.deps.Sender, s.deps.Keywords, s.deps.Tokens, s.deps.Triggers).RegisterRoutes(r)

	jwtCfg := &JWTConfig{Secret: s.config.JWTSecret, Issuer: s.config.JWTIssuer}
	if jwtCfg.Enabled() {
		applog.Info("🔐 JWT auth enabled for /api routes")
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(jwtCfg))
		if s.deps.Editors != nil {
			NewEditorHandler(s.deps.Editors, s.config.PreviewTimeout).RegisterRoutes(r)
		}
		if s.deps.Sessions != nil {
			NewSessionHandler(s.deps.Sessions, originChecker(s.config.AllowedOrigins)).RegisterRoutes(r)
		}
	})
	return r
}

// corsMiddleware CORS 中间件
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && originAllowed(allowed, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// originChecker WebSocket 握手的来源校验，与 CORS 白名单一致
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || originAllowed(allowed, origin)
	}
}

// metricsMiddleware 统计请求数
func metricsMiddleware(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.HTTPRequest(r.Method, status)
		})
	}
}
