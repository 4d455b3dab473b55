// Package httpapi expone el sentinel por HTTP: envío de tips, mercado
// simulado, ledger, journal del pipeline, stream de precios y /metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/sentinel/internal/application/ledger"
	"github.com/alejandrodnm/sentinel/internal/application/market"
	"github.com/alejandrodnm/sentinel/internal/application/orchestrator"
	"github.com/alejandrodnm/sentinel/internal/observability"
	"github.com/alejandrodnm/sentinel/internal/ports"
)

const (
	DefaultServiceName    = "KRWQ Sentinel Backend"
	DefaultStreamInterval = 2 * time.Second
	defaultRuns           = 20
	maxBodyBytes          = 64 << 10
)

// Submitter procesa un tip. *orchestrator.Orchestrator lo implementa.
type Submitter interface {
	Submit(ctx context.Context, sub orchestrator.Submission) (*orchestrator.Result, error)
}

// Deps are the collaborators of the API. Journal, Metrics and Logger are optional.
type Deps struct {
	Submitter Submitter
	Market    *market.Simulator
	Ledger    *ledger.Ledger
	Journal   ports.Journal
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	ServiceName    string
	StreamInterval time.Duration
}

// Server holds the handlers. Build the router with Handler.
type Server struct {
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates the API server.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = DefaultServiceName
	}
	if d.StreamInterval <= 0 {
		d.StreamInterval = DefaultStreamInterval
	}
	return &Server{
		deps:   d,
		logger: d.Logger.With("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// El frontend corre en otro origen, igual que con CORS abierto.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(s.logger, s.deps.Metrics))

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/submit-tip", s.handleSubmitTip)

		r.Route("/market", func(r chi.Router) {
			r.Get("/prices", s.handlePrices)
			r.Get("/stats", s.handleMarketStats)
			r.Get("/arbitrage", s.handleArbitrage)
			r.Post("/demo-trade", s.handleDemoTrade)
			r.Get("/stream", s.handleStream)
		})

		r.Get("/tips/history", s.handleTipHistory)
		r.Get("/tips/stats", s.handleTipStats)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/user/{userId}", s.handleUserProfile)
		r.Get("/pipeline/runs", s.handlePipelineRuns)
	})

	return r
}

// Close termina los streams abiertos. http.Server.Shutdown no los ve porque
// son conexiones secuestradas.
func (s *Server) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
}
