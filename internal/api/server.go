package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/metrics"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	serviceName    = "Gold Price Monitor"
	serviceVersion = "1.0.0"
)

// Refresher is the scheduler surface the API needs.
type Refresher interface {
	FetchNow(ctx context.Context) models.PriceObservation
	Running() bool
	Interval() time.Duration
	Latest() (models.PriceObservation, bool)
}

type Options struct {
	Port            int
	CORSAllowOrigin string
	RateLimitRPS    float64
	RateLimitBurst  int
	UpstreamURL     string // empty in demo mode; only reported by /health
}

type Server struct {
	assembler  *Assembler
	sampler    PriceSampler
	scheduler  Refresher
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	limiter    *clientLimiter
	upstream   string
	now        func() time.Time
	handler    http.Handler
	httpServer *http.Server
}

// NewServer wires routes and middleware. scheduler and m may be nil.
func NewServer(opts Options, assembler *Assembler, sampler PriceSampler, scheduler Refresher, m *metrics.Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		assembler: assembler,
		sampler:   sampler,
		scheduler: scheduler,
		metrics:   m,
		log:       log,
		limiter:   newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		upstream:  opts.UpstreamURL,
		now:       time.Now,
	}

	mux := http.NewServeMux()

	// Dashboard routes
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		mux.HandleFunc(method+" /gold-price", s.handleGoldPrice)
		mux.HandleFunc(method+" /market-data", s.handleMarketData)
		mux.HandleFunc(method+" /websocket", s.handleLiveEvent)
	}

	// Service routes
	mux.HandleFunc("GET /gold/current", s.handleCurrent)
	mux.HandleFunc("POST /gold/refresh", s.handleRefresh)
	mux.HandleFunc("GET /gold/status", s.handleStatus)
	mux.HandleFunc("GET /gold/health", s.handleGoldHealth)

	// Health and metrics (not rate limited)
	mux.HandleFunc("GET /health", s.handleHealth)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	var handler http.Handler = mux
	if m != nil {
		handler = m.Middleware(handler)
	}
	handler = s.rateLimitMiddleware(handler)
	handler = corsMiddleware(handler, opts.CORSAllowOrigin)
	handler = s.recoverMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("REST API server started")
	s.log.Infof("Health check: http://localhost%s/health", s.httpServer.Addr)
	if s.upstream == "" {
		s.log.Info("Upstream quotes: disabled (demo mode, fallback data only)")
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- response helpers ---

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, summary string, err error) {
	msg := summary
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorEnvelope{
		Success: false,
		Code:    code,
		Error:   summary,
		Message: msg,
	})
}
