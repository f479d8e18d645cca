// Agent dashboard server.
// Executes blockchain operations, records them, and serves the dashboard API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainops/agentdash/internal/aggregator"
	"github.com/chainops/agentdash/internal/broadcast"
	"github.com/chainops/agentdash/internal/config"
	"github.com/chainops/agentdash/internal/dispatch"
	"github.com/chainops/agentdash/internal/executor"
	"github.com/chainops/agentdash/internal/ledger"
	"github.com/chainops/agentdash/internal/rpc"
	"github.com/chainops/agentdash/internal/transport"
	"github.com/chainops/agentdash/internal/wallet"
	"github.com/chainops/agentdash/pkg/types"
)

// rpcHealth adapts the RPC client to the readiness probe.
type rpcHealth struct {
	client rpc.Client
}

func (h *rpcHealth) CheckRPC(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := h.client.GetBlockNumber(ctx)
	return err
}

func main() {
	// Setup logger
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := ledger.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("initialized storage", "path", cfg.DatabasePath)

	// Rebuild the metrics view from the ledger so restarts don't lose history.
	prom := aggregator.NewPrometheusMetrics(nil)
	agg := aggregator.New().WithPrometheus(prom)
	ctx := context.Background()
	if err := agg.Rebuild(func(fn func(rec *types.TransactionRecord) error) error {
		return store.All(ctx, fn)
	}); err != nil {
		logger.Error("failed to rebuild metrics", "error", err)
		os.Exit(1)
	}
	snapshot := agg.Snapshot()
	logger.Info("rebuilt metrics from ledger",
		"operations", snapshot.OverallStats.TotalOperations,
		"trend_days", len(snapshot.GasTrends),
	)

	// Chain client and executor
	client := rpc.NewHTTPClient(rpc.DefaultClientConfig(cfg.RPCURL))
	exec, err := executor.NewEthExecutor(executor.EthConfig{
		Client:       client,
		ChainID:      cfg.ChainID,
		AgentKeyHex:  cfg.AgentPrivateKey,
		FaucetKeyHex: cfg.FaucetPrivateKey,
		GasTipCap:    cfg.GasTipCap,
		GasFeeCap:    cfg.GasFeeCap,
		GasLimit:     cfg.GasLimit,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create executor", "error", err)
		os.Exit(1)
	}

	// Agent wallet view
	agentKey, err := crypto.HexToECDSA(cfg.AgentPrivateKey)
	if err != nil {
		logger.Error("invalid agent key", "error", err)
		os.Exit(1)
	}
	agentAddr := crypto.PubkeyToAddress(agentKey.PublicKey).Hex()
	w := wallet.New(agentAddr, cfg.Network, client, store, logger)
	if err := w.Restore(ctx); err != nil {
		logger.Warn("failed to restore wallet state", "error", err)
	}
	refreshCtx, cancelRefresh := context.WithTimeout(ctx, 10*time.Second)
	if err := w.Refresh(refreshCtx); err != nil {
		logger.Warn("initial balance fetch failed, continuing with persisted state", "error", err)
	}
	cancelRefresh()
	logger.Info("agent wallet ready", "address", agentAddr, "network", cfg.Network)

	// Pipeline
	hub := broadcast.NewHub(cfg.WSBufferSize, logger)
	coord := dispatch.New(exec, store, agg, hub, logger)

	server := transport.NewServer(transport.ServerConfig{
		Dispatcher:         coord,
		Store:              store,
		Aggregator:         agg,
		Hub:                hub,
		Wallet:             w,
		Health:             &rpcHealth{client: client},
		Prom:               prom,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		hub.Close()
	}()

	logger.Info("starting HTTP server", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
