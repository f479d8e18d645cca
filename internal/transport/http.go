// Package transport provides the dashboard HTTP and WebSocket API.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainops/agentdash/internal/aggregator"
	"github.com/chainops/agentdash/internal/broadcast"
	"github.com/chainops/agentdash/internal/dispatch"
	"github.com/chainops/agentdash/internal/ledger"
	"github.com/chainops/agentdash/pkg/types"
)

// Query limits for /api/transactions.
const (
	defaultTxLimit = 50
	maxTxLimit     = 500
)

// defaultTrendDays is the gas-trend window when no days param is given.
const defaultTrendDays = 7

// Dispatcher executes operation requests.
type Dispatcher interface {
	Submit(ctx context.Context, req types.OperationRequest) (*types.TransactionRecord, error)
}

// WalletAPI exposes the agent wallet to the API layer.
type WalletAPI interface {
	Info() *types.WalletInfo
	Refresh(ctx context.Context) error
}

// HealthChecker reports whether the chain node is reachable.
type HealthChecker interface {
	CheckRPC(ctx context.Context) error
}

// Server handles HTTP requests for the dashboard.
type Server struct {
	dispatcher Dispatcher
	store      ledger.Storage
	agg        *aggregator.Aggregator
	hub        *broadcast.Hub
	wallet     WalletAPI
	health     HealthChecker
	prom       *aggregator.PrometheusMetrics
	logger     *slog.Logger
	startTime  time.Time

	// CORS configuration
	corsAllowedOrigins []string
	corsAllowAll       bool
}

// ServerConfig wires the server's collaborators. Prom and Health are
// optional.
type ServerConfig struct {
	Dispatcher Dispatcher
	Store      ledger.Storage
	Aggregator *aggregator.Aggregator
	Hub        *broadcast.Hub
	Wallet     WalletAPI
	Health     HealthChecker
	Prom       *aggregator.PrometheusMetrics
	Logger     *slog.Logger

	// Comma-separated list of allowed origins, or "*" for all.
	CORSAllowedOrigins string
}

// NewServer creates a new HTTP server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		agg:        cfg.Aggregator,
		hub:        cfg.Hub,
		wallet:     cfg.Wallet,
		health:     cfg.Health,
		prom:       cfg.Prom,
		logger:     logger,
		startTime:  time.Now(),
	}

	origins := strings.TrimSpace(cfg.CORSAllowedOrigins)
	if origins == "" || origins == "*" {
		s.corsAllowAll = true
	} else {
		s.corsAllowedOrigins = strings.Split(origins, ",")
		for i, o := range s.corsAllowedOrigins {
			s.corsAllowedOrigins[i] = strings.TrimSpace(o)
		}
	}

	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/transaction", s.corsMiddleware(s.handleSubmit))
	mux.HandleFunc("/api/metrics", s.corsMiddleware(s.handleMetrics))
	mux.HandleFunc("/api/transactions", s.corsMiddleware(s.handleTransactions))
	mux.HandleFunc("/api/gas-trends", s.corsMiddleware(s.handleGasTrends))
	mux.HandleFunc("/api/wallet", s.corsMiddleware(s.handleWallet))
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health endpoints (standard Kubernetes probes)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	// Prometheus metrics (standard path)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// corsMiddleware adds CORS headers based on the configured allowed origins.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.corsAllowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, o := range s.corsAllowedOrigins {
				if o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSONError writes a JSON error response.
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": message})
}

// handleSubmit executes one operation request.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.WalletID == "" {
		s.writeJSONError(w, "wallet_id is required", http.StatusBadRequest)
		return
	}

	rec, err := s.dispatcher.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidOperation) {
			s.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("submit failed", slog.String("error", err.Error()))
		s.writeJSONError(w, "Failed to process operation: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Balance changed; refresh off the request path and tell live viewers.
	go s.refreshWallet()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.SubmitResponse{
		Status:      "success",
		Transaction: rec,
	})
}

// refreshWallet re-reads the wallet balance and publishes it to subscribers.
func (s *Server) refreshWallet() {
	if s.wallet == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.wallet.Refresh(ctx); err != nil {
		s.logger.Warn("wallet refresh failed", slog.String("error", err.Error()))
		return
	}
	s.hub.Publish(types.Event{Wallet: s.wallet.Info()})
}

// handleMetrics returns the aggregated metrics report.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.agg.Snapshot()
	if v := r.URL.Query().Get("operation_type"); v != "" {
		if !types.ValidOperationTypes[types.OperationType(v)] {
			s.writeJSONError(w, "invalid operation_type filter: "+v, http.StatusBadRequest)
			return
		}
		narrowed := make(map[string]types.OperationStats, 1)
		if st, ok := report.OperationTypes[v]; ok {
			narrowed[v] = st
		}
		report.OperationTypes = narrowed
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.MetricsResponse{
		Status:  "success",
		Metrics: report,
	})
}

// handleGasTrends returns the per-day gas usage series for the last N days
// (query param days, default 7).
func (s *Server) handleGasTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := defaultTrendDays
	if v := r.URL.Query().Get("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}

	// Trends are sorted ascending by date, so the window is a suffix.
	trends := s.agg.Snapshot().GasTrends
	cutoff := time.Now().UTC().AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	for len(trends) > 0 && trends[0].Date < cutoff {
		trends = trends[1:]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "success",
		"gas_trends": trends,
	})
}

// handleTransactions returns recorded transactions, newest first.
// Query params: wallet_id, status, limit, offset.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := ledger.Filter{
		WalletID: q.Get("wallet_id"),
		Status:   types.TxStatus(q.Get("status")),
	}
	if filter.Status != "" && filter.Status != types.StatusSuccess &&
		filter.Status != types.StatusFailed && filter.Status != types.StatusPending {
		s.writeJSONError(w, "invalid status filter: "+string(filter.Status), http.StatusBadRequest)
		return
	}

	limit := defaultTxLimit
	offset := 0
	if v := q.Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= maxTxLimit {
			limit = l
		}
	}
	if v := q.Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	records, err := s.store.Query(r.Context(), filter, limit, offset)
	if err != nil {
		s.logger.Error("transaction query failed", slog.String("error", err.Error()))
		s.writeJSONError(w, "Failed to query transactions: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.TransactionsResponse{
		Status:       "success",
		Transactions: records,
	})
}

// handleWallet returns the agent wallet snapshot.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.wallet == nil {
		s.writeJSONError(w, "wallet not configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.WalletResponse{
		Status: "success",
		Data:   s.wallet.Info(),
	})
}

// handleHealth handles liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"ws_clients":     s.hub.Count(),
	})
}

// ReadinessCheck represents a single readiness check result.
type ReadinessCheck struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // "ok" or "failed"
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleReady handles readiness probes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := []ReadinessCheck{}
	allHealthy := true

	if s.health != nil {
		start := time.Now()
		err := s.health.CheckRPC(r.Context())
		latency := time.Since(start).Milliseconds()

		check := ReadinessCheck{
			Name:      "chain-rpc",
			LatencyMs: latency,
		}
		if err != nil {
			check.Status = "failed"
			check.Error = err.Error()
			allHealthy = false
		} else {
			check.Status = "ok"
		}
		checks = append(checks, check)
	}

	response := map[string]any{
		"ready":  allHealthy,
		"checks": checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if allHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
