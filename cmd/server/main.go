// Package main is the entry point for the LP APY service, which fetches
// liquidity-pool yield data from an upstream aggregator and serves honest,
// caveat-annotated APY estimates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/lp-apy/internal/config"
	"github.com/yourorg/lp-apy/internal/estimate"
	"github.com/yourorg/lp-apy/internal/export"
	"github.com/yourorg/lp-apy/internal/fetch"
	"github.com/yourorg/lp-apy/internal/guard"
	"github.com/yourorg/lp-apy/internal/model"
	"github.com/yourorg/lp-apy/internal/normalize"
	"github.com/yourorg/lp-apy/internal/otel"
	"github.com/yourorg/lp-apy/internal/quality"
	"github.com/yourorg/lp-apy/internal/security"
	"github.com/yourorg/lp-apy/internal/stats"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server is the HTTP service instance.
type Server struct {
	config      config.Config
	store       *fetch.Store
	guard       *guard.Guard
	refresher   *fetch.Refresher
	estimator   estimate.Estimator
	qualityOpts quality.Options
	signer      *security.Signer
	webhook     *export.Webhook
	limiter     *rate.Limiter
	metrics     *serverMetrics
	server      *http.Server
}

// serverMetrics holds Prometheus metrics for the server. Each server gets
// its own registry so the collectors never collide.
type serverMetrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fetchErrors     prometheus.Counter
	poolCount       prometheus.Gauge
	skippedRecords  prometheus.Counter
	estimateBases   *prometheus.CounterVec
	guardState      prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection.
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpapy_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lpapy_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		fetchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lpapy_fetch_errors_total",
				Help: "Total number of upstream fetch failures",
			},
		),
		poolCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpapy_pool_count",
				Help: "Number of pools in the current snapshot",
			},
		),
		skippedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lpapy_skipped_records_total",
				Help: "Raw records skipped for missing identifiers",
			},
		),
		estimateBases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpapy_estimates_total",
				Help: "Estimates produced, labeled by basis",
			},
			[]string{"basis"},
		),
		guardState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpapy_guard_state",
				Help: "Snapshot guard state (0=closed, 1=open, 2=half-open)",
			},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.fetchErrors,
		m.poolCount,
		m.skippedRecords,
		m.estimateBases,
		m.guardState,
	)

	return m
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	setupLogging()
	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server, err := NewServer(cfg)
	if err != nil {
		logrus.Fatalf("Error initializing server: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application.
func setupLogging() {
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewServer wires the fetch pipeline, guard, estimator and HTTP surface.
func NewServer(cfg config.Config) (*Server, error) {
	snapGuard := guard.New(guard.Thresholds{
		MinPoolFraction:  cfg.MinPoolFraction,
		MaxMedianAPYJump: cfg.MaxMedianAPYJump,
	}, cfg.GuardCooldown)

	client := fetch.NewLlamaClient(cfg.LlamaURL, cfg.RequestTimeout)
	store := fetch.NewStore(client, snapGuard, cfg.CacheTTL)

	refresher, err := fetch.NewRefresher(store, cfg.RefreshInterval, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating refresher: %w", err)
	}

	var signer *security.Signer
	if cfg.SigningEnabled {
		signer, err = security.NewSigner()
		if err != nil {
			return nil, fmt.Errorf("creating signer: %w", err)
		}
		logrus.WithField("publicKey", signer.PublicKey()).Info("Response signing enabled")
	}

	s := &Server{
		config:    cfg,
		store:     store,
		guard:     snapGuard,
		refresher: refresher,
		estimator: estimate.Estimator{
			FeeRate:          cfg.FeeRate,
			VolumeWindowDays: cfg.VolumeWindowDays,
		},
		qualityOpts: quality.Options{
			ThinTVL:                cfg.ThinTVLThreshold,
			VeryThinTVL:            cfg.VeryThinTVLThreshold,
			EnableOutlierDetection: true,
			OutlierIQRMultiplier:   cfg.OutlierIQRMultiplier,
		},
		signer: signer,
		webhook: export.NewWebhook(export.WebhookConfig{
			Enabled:  cfg.WebhookEnabled,
			URL:      cfg.WebhookURL,
			APIKey:   cfg.WebhookAPIKey,
			Interval: cfg.WebhookInterval,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		metrics: registerMetrics(),
	}

	logrus.WithFields(logrus.Fields{
		"port":           cfg.Port,
		"upstream":       cfg.LlamaURL,
		"cache_ttl":      cfg.CacheTTL,
		"thin_threshold": cfg.ThinTVLThreshold,
		"fee_rate":       cfg.FeeRate,
		"signing":        cfg.SigningEnabled,
		"webhook":        cfg.WebhookEnabled,
	}).Info("Server initialized")

	return s, nil
}

// router builds the HTTP routes and middleware chain.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.rateLimitMiddleware)

	r.HandleFunc("/pools", s.handlePools).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}", s.handlePool).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/projection", s.handleProjection).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/il", s.handleImpermanentLoss).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

// Start begins the HTTP server and sets up graceful shutdown.
func (s *Server) Start() {
	s.refresher.Start()

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	s.refresher.Stop()
	s.webhook.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// requestIDMiddleware tags every request with an id for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)

		logrus.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Debug("Request handled")
	})
}

// rateLimitMiddleware rejects requests beyond the configured rate.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.errorResponse(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// poolWithEstimate pairs a normalized pool with its APY estimate.
type poolWithEstimate struct {
	Pool     model.NormalizedPool `json:"pool"`
	Estimate model.ApyEstimate    `json:"estimate"`
}

// loadPools returns the normalized view of the current snapshot.
func (s *Server) loadPools(ctx context.Context) ([]model.NormalizedPool, *model.PoolSnapshot, error) {
	snap, err := s.store.Get(ctx)
	if err != nil {
		s.metrics.fetchErrors.Inc()
		otel.RecordError(ctx, err)
		return nil, nil, err
	}

	pools, skipped := normalize.NormalizeAll(snap.Pools, s.config.ThinTVLThreshold)
	if skipped > 0 {
		s.metrics.skippedRecords.Add(float64(skipped))
	}
	s.metrics.poolCount.Set(float64(len(pools)))
	s.metrics.guardState.Set(float64(s.guard.GetState()))

	return pools, snap, nil
}

// estimateFor produces an estimate and counts it by basis.
func (s *Server) estimateFor(pool model.NormalizedPool) model.ApyEstimate {
	est := s.estimator.Estimate(pool)
	s.metrics.estimateBases.WithLabelValues(string(est.Basis)).Inc()
	return est
}

// handlePools lists pools with estimates, optionally filtered by a
// case-insensitive search over symbol, project and chain.
func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	pools, snap, err := s.loadPools(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusBadGateway, fmt.Sprintf("error fetching pools: %v", err))
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	limit := parseIntParam(r, "limit", s.config.MaxResults)

	results := make([]poolWithEstimate, 0, limit)
	for _, pool := range pools {
		if search != "" && !matchesSearch(pool, search) {
			continue
		}
		results = append(results, poolWithEstimate{Pool: pool, Estimate: s.estimateFor(pool)})
		if len(results) >= limit {
			break
		}
	}

	s.writeJSON(w, r, "pools", start, map[string]interface{}{
		"fetchedAt": snap.FetchedAt,
		"count":     len(results),
		"pools":     results,
	})
}

// handlePool serves one pool with its estimate and quality warnings.
func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	pool, ok := s.findPool(w, r)
	if !ok {
		return
	}

	assessment := quality.Assess(pool, s.qualityOpts)
	s.writeJSON(w, r, "pool", start, map[string]interface{}{
		"pool":            pool,
		"estimate":        s.estimateFor(pool),
		"qualityWarnings": assessment.Warnings(),
	})
}

// handleProjection projects a position in one pool over a time horizon.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	pool, ok := s.findPool(w, r)
	if !ok {
		return
	}

	est := s.estimateFor(pool)
	if est.Value == nil {
		s.errorResponse(w, r, http.StatusUnprocessableEntity,
			"insufficient data to estimate APY for this pool")
		return
	}

	position := parseFloatParam(r, "position", 100)
	days := parseIntParam(r, "days", 30)
	compound := parseBoolParam(r, "compound", true)

	s.writeJSON(w, r, "projection", start, map[string]interface{}{
		"pool":       pool.ID,
		"apy":        *est.Value,
		"basis":      est.Basis,
		"warnings":   est.Warnings,
		"position":   position,
		"days":       days,
		"compounded": compound,
		"rows":       estimate.GrowthTable(position, *est.Value, days, compound),
	})
}

// handleImpermanentLoss serves the IL stress table for a position.
func (s *Server) handleImpermanentLoss(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	pool, ok := s.findPool(w, r)
	if !ok {
		return
	}

	position := parseFloatParam(r, "position", 100)
	s.writeJSON(w, r, "il", start, map[string]interface{}{
		"pool":     pool.ID,
		"position": position,
		"note":     "assumes a 50/50 constant-product pool; fee income not included.",
		"rows":     estimate.ImpermanentLossTable(position),
	})
}

// handleSummary serves cross-pool statistics, outlier-filtered for
// robustness and optionally signed.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	pools, snap, err := s.loadPools(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusBadGateway, fmt.Sprintf("error fetching pools: %v", err))
		return
	}

	if s.qualityOpts.EnableOutlierDetection {
		pools = quality.FilterOutliers(pools, s.qualityOpts.OutlierIQRMultiplier)
	}

	summary := stats.Summarize(pools)
	s.webhook.Add(summary)

	body := map[string]interface{}{
		"fetchedAt": snap.FetchedAt,
		"summary":   summary,
	}

	if s.signer != nil {
		signed, err := s.signer.Sign(summary)
		if err != nil {
			logrus.WithError(err).Warn("Failed to sign summary")
		} else {
			body["signature"] = signed.Signature
			body["signedAt"] = signed.SignedAt
			body["publicKey"] = signed.PublicKey
		}
	}

	s.writeJSON(w, r, "summary", start, body)
}

// handleHealth is a simple health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "operational",
		"uptime":     time.Since(startTime).String(),
		"upstream":   s.config.LlamaURL,
		"guardState": s.guard.GetState().String(),
		"configuration": map[string]interface{}{
			"thinTvlThreshold": s.config.ThinTVLThreshold,
			"feeRate":          s.config.FeeRate,
			"volumeWindowDays": s.config.VolumeWindowDays,
			"cacheTtl":         s.config.CacheTTL.String(),
		},
	}

	if snap := s.store.Cached(); snap != nil {
		status["snapshotFetchedAt"] = snap.FetchedAt
		status["snapshotPoolCount"] = len(snap.Pools)
	}
	if s.signer != nil {
		status["publicKey"] = s.signer.PublicKey()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// findPool resolves the {id} path variable against the current snapshot,
// writing the error response itself when resolution fails.
func (s *Server) findPool(w http.ResponseWriter, r *http.Request) (model.NormalizedPool, bool) {
	id := mux.Vars(r)["id"]

	pools, _, err := s.loadPools(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusBadGateway, fmt.Sprintf("error fetching pools: %v", err))
		return model.NormalizedPool{}, false
	}

	for _, pool := range pools {
		if pool.ID == id {
			return pool, true
		}
	}

	s.errorResponse(w, r, http.StatusNotFound, fmt.Sprintf("pool %q not found", id))
	return model.NormalizedPool{}, false
}

// matchesSearch reports whether the search term appears in the pool's
// symbol, project or chain.
func matchesSearch(pool model.NormalizedPool, search string) bool {
	return strings.Contains(strings.ToLower(pool.Symbol), search) ||
		strings.Contains(strings.ToLower(pool.Project), search) ||
		strings.Contains(strings.ToLower(pool.Chain), search)
}

// writeJSON sends a success response and records request metrics.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, route string, start time.Time, body interface{}) {
	s.metrics.requestCounter.WithLabelValues(route, "success").Inc()
	s.metrics.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// errorResponse returns a formatted error response.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorMsg string) {
	logrus.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": statusCode,
	}).Warn(errorMsg)

	s.metrics.requestCounter.WithLabelValues(r.URL.Path, "error").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"error":  errorMsg,
	})
}
