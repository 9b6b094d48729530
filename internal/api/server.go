package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"CircleLayer-Assistant/internal/assistant"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/observability/metrics"
	"CircleLayer-Assistant/internal/session"
	"CircleLayer-Assistant/internal/storage/audit"
	"CircleLayer-Assistant/internal/task"
)

// Responder 是 *assistant.Assistant 的最小接口。
type Responder interface {
	Handle(ctx context.Context, text string) assistant.Response
}

// Dependencies 汇总了 API 所需的组件。Tasks、Audit 与 Ledger 为空时对应接口返回 503。
type Dependencies struct {
	Assistant Responder
	Sessions  *session.Manager
	Tasks     *task.Service
	Audit     audit.Repository
	Ledger    ledger.Client
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr            string
	deps            Dependencies
	router          chi.Router
	allowedOrigins  []string
	shutdownTimeout time.Duration
	chatTimeout     time.Duration
	metrics         bool
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithAllowedOrigins 设置 CORS 允许的来源。
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithChatTimeout 限制单次同步对话的处理时间。
func WithChatTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.chatTimeout = d
		}
	}
}

// WithMetrics 控制是否采集 HTTP 指标并暴露 /metrics，默认开启。
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, deps Dependencies, opts ...Option) *Server {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(session.WithGreeting(assistant.Welcome, string(assistant.KindHelp)))
	}
	s := &Server{
		addr:            addr,
		deps:            deps,
		allowedOrigins:  []string{"*"},
		shutdownTimeout: 5 * time.Second,
		chatTimeout:     60 * time.Second,
		metrics:         true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics {
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders: []string{"X-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}/messages", s.handleSessionMessages)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleJobDetail)
		r.Get("/audit", s.handleAudit)
		r.Post("/transfers/validate", s.handleValidateTransfer)
	})
	return r
}

// Handler 返回路由，供 Lambda 适配器与测试直接调用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
