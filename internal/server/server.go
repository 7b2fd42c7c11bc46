// Package server exposes the browser UI and the JSON/WebSocket API that
// drives the dispatchers.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"aistudio/internal/config"
	"aistudio/internal/counter"
	"aistudio/internal/dispatch"
	"aistudio/internal/enhance"
	"aistudio/internal/openai"
	"aistudio/internal/session"
	"aistudio/internal/telemetry"
)

// Server wires HTTP handlers to the application services.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	actions    *telemetry.ActionLogger
	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher
	enhancer   *enhance.Service
	counters   *counter.Store
	client     *openai.Client
	limiter    *rateLimiter
	upgrader   websocket.Upgrader
}

// New creates the server.
func New(cfg *config.Config, logger *slog.Logger, actions *telemetry.ActionLogger, sessions *session.Manager, dispatcher *dispatch.Dispatcher, enhancer *enhance.Service, counters *counter.Store, client *openai.Client) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		actions:    actions,
		sessions:   sessions,
		dispatcher: dispatcher,
		enhancer:   enhancer,
		counters:   counters,
		client:     client,
		limiter:    newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cookie-scoped sessions; the UI and API share an origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the handler tree with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /api/auth", s.handleAuth)
	mux.HandleFunc("GET /ws/chat", s.handleChatWS)
	mux.HandleFunc("POST /api/image", s.handleImage)
	mux.HandleFunc("GET /api/image/download", s.handleImageDownload)
	mux.HandleFunc("POST /api/video", s.handleVideo)
	mux.HandleFunc("POST /api/session/clear", s.handleClear)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("POST /api/enhance/start", s.handleEnhanceStart)
	mux.HandleFunc("POST /api/enhance/suggest", s.handleEnhanceSuggest)
	mux.HandleFunc("POST /api/enhance/next", s.handleEnhanceNext)
	mux.HandleFunc("POST /api/enhance/back", s.handleEnhanceBack)
	mux.HandleFunc("POST /api/enhance/final", s.handleEnhanceFinal)
	mux.HandleFunc("GET /api/enhance/export", s.handleEnhanceExport)
	mux.HandleFunc("POST /api/enhance/reset", s.handleEnhanceReset)

	var handler http.Handler = mux
	handler = s.withRateLimit(handler)
	handler = s.withSession(handler)
	handler = s.withLogging(handler)
	handler = s.withRecover(handler)
	return handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StartSweeper starts the idle-session sweeper. Expired sessions also drop
// their rate-limit bucket and any in-progress enhancement flow.
func (s *Server) StartSweeper(ctx context.Context) {
	s.sessions.OnExpire(func(id string) {
		s.limiter.forget(id)
		s.enhancer.Reset(id)
	})
	s.sessions.StartSweeper(ctx, config.SessionSweepInterval)
}
