package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	leaderboardsvc "github.com/multitask/scoreboard/src/app/leaderboard"
)

type ServerConfig struct {
	Logger             *zap.Logger
	LeaderboardService *leaderboardsvc.Service
	APIKey             string
	CORSOrigins        []string
	// Registry receives the HTTP collectors and backs /metrics. A private registry is
	// created when nil.
	Registry *prometheus.Registry
}

// Server wires HTTP endpoints to the leaderboard service with observability instrumentation.
type Server struct {
	cfg            ServerConfig
	router         *mux.Router
	live           *liveFeed
	handler        http.Handler
	httpMetrics    *prometheus.HistogramVec
	requestCounter *prometheus.CounterVec
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	srv := &Server{cfg: cfg, live: newLiveFeed()}
	srv.initMetrics()
	srv.buildRouter()
	srv.buildHandler()
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) initMetrics() {
	s.httpMetrics = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scoreboard",
		Subsystem: "http",
		Name:      "request_latency_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	s.requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoreboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route",
	}, []string{"route", "method", "code"})
	s.cfg.Registry.MustRegister(s.httpMetrics, s.requestCounter)
}

func (s *Server) buildRouter() {
	r := mux.NewRouter()
	r.Use(s.correlationMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)

	r.Handle("/scores/ping", otelhttp.NewHandler(http.HandlerFunc(s.handlePing), "Ping")).Methods(http.MethodGet)
	r.Handle("/scores", otelhttp.NewHandler(s.apiKeyMiddleware(http.HandlerFunc(s.handleSubmitScore)), "SubmitScore")).Methods(http.MethodPost)
	r.Handle("/scores/top10", otelhttp.NewHandler(s.apiKeyMiddleware(http.HandlerFunc(s.handleTopScores)), "TopScores")).Methods(http.MethodGet)
	r.Handle("/scores/live", s.apiKeyMiddleware(http.HandlerFunc(s.handleLiveScores))).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router = r
}

// buildHandler wraps the router with CORS, panic recovery and response compression.
func (s *Server) buildHandler() {
	corsOpts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", apiKeyHeader, signatureHeader, "X-Request-Id"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
	}
	if len(s.cfg.CORSOrigins) > 0 {
		corsOpts = append(corsOpts, handlers.AllowedOrigins(s.cfg.CORSOrigins))
	}

	var h http.Handler = s.router
	h = handlers.CORS(corsOpts...)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.cfg.Logger)),
		handlers.PrintRecoveryStack(true),
	)(h)
	compressed := gzhttp.GzipHandler(h)
	// Upgraded connections are hijacked, so they skip the gzip writer.
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			h.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	s.writeJSON(w, status, errorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   err.Error(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.cfg.Logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration),
			zap.Int64("bytes", m.Written),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", correlationIDFromContext(r.Context())),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		route := mux.CurrentRoute(r)
		routeName := "unknown"
		if route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		labels := prometheus.Labels{"route": routeName, "method": r.Method, "code": strconv.Itoa(m.Code)}
		s.httpMetrics.With(labels).Observe(m.Duration.Seconds())
		s.requestCounter.With(labels).Inc()
	})
}
