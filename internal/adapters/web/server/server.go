package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

// Config configures the HTTP surface.
type Config struct {
	Addr            string
	StaticDir       string
	Auth            middleware.BasicAuth
	CandidatesRPS   float64
	CandidatesBurst int
	AllowedOrigins  []string
}

// Deps are the services the handlers read from. Sensor and Feed may be nil.
type Deps struct {
	Summary ports.SummaryService
	Locate  ports.LocateService
	Base    ports.BaseLocationStore
	Store   ports.ProbeStore
	Sensor  ports.SensorClient
	Feed    ports.FeedMonitor
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	StaticDir string
	Auth      middleware.BasicAuth

	SummaryHandler    *handlers.SummaryHandler
	CandidatesHandler *handlers.CandidatesHandler
	BaseHandler       *handlers.BaseHandler
	StatusHandler     *handlers.StatusHandler
	DebugHandler      *handlers.DebugHandler
	WSManager         *websocket.WSManager
	CandidatesLimiter *middleware.RateLimiter

	handler http.Handler
}

// NewServer creates a new web server.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		Addr:      cfg.Addr,
		StaticDir: cfg.StaticDir,
		Auth:      cfg.Auth,

		SummaryHandler:    handlers.NewSummaryHandler(deps.Summary),
		CandidatesHandler: handlers.NewCandidatesHandler(deps.Locate),
		BaseHandler:       handlers.NewBaseHandler(deps.Base),
		StatusHandler:     handlers.NewStatusHandler(deps.Feed, deps.Store),
		DebugHandler:      handlers.NewDebugHandler(deps.Store, deps.Sensor),
		WSManager:         websocket.NewWSManager(deps.Summary, cfg.AllowedOrigins...),
		CandidatesLimiter: middleware.NewRateLimiter(cfg.CandidatesRPS, cfg.CandidatesBurst),
	}
	s.handler = otelhttp.NewHandler(SetupRoutes(s), "geoprobe-server")
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown error", "error", err)
		}
	}()

	slog.Info("web server listening", "addr", s.Addr, "auth", s.Auth.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) String() string {
	return "web-server"
}
