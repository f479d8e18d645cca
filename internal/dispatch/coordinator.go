// Package dispatch coordinates operation execution, recording, and fan-out.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chainops/agentdash/internal/aggregator"
	"github.com/chainops/agentdash/internal/broadcast"
	"github.com/chainops/agentdash/internal/executor"
	"github.com/chainops/agentdash/internal/ledger"
	"github.com/chainops/agentdash/pkg/types"
)

// ErrInvalidOperation is returned for unrecognized operation types. Nothing
// is executed or recorded in that case.
var ErrInvalidOperation = errors.New("dispatch: invalid operation type")

// Coordinator is the entry point for operation requests. It serializes
// same-wallet requests, runs the executor, and performs the record/update/
// notify sequence exactly once per request.
type Coordinator struct {
	exec   executor.Executor
	store  ledger.Storage
	agg    *aggregator.Aggregator
	hub    *broadcast.Hub
	logger *slog.Logger

	// One mutex per wallet_id. Same-wallet requests are strictly serialized
	// in arrival order; distinct wallets proceed in parallel. This is the
	// pipeline's one hard ordering guarantee. Entries are never evicted:
	// the map grows with the number of distinct wallet IDs ever seen, which
	// stays tiny for a dashboard fronting a handful of agent wallets.
	walletMu sync.Mutex
	wallets  map[string]*sync.Mutex
}

// New creates a coordinator.
func New(exec executor.Executor, store ledger.Storage, agg *aggregator.Aggregator, hub *broadcast.Hub, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		exec:    exec,
		store:   store,
		agg:     agg,
		hub:     hub,
		logger:  logger,
		wallets: make(map[string]*sync.Mutex),
	}
}

// walletLock returns the mutex for a wallet, creating it on first use.
func (c *Coordinator) walletLock(walletID string) *sync.Mutex {
	c.walletMu.Lock()
	defer c.walletMu.Unlock()
	mu, ok := c.wallets[walletID]
	if !ok {
		mu = &sync.Mutex{}
		c.wallets[walletID] = mu
	}
	return mu
}

// Submit executes one operation request and returns its terminal record.
//
// Execution failures are converted into data: the attempt is recorded as a
// failed record and returned without error. Only pre-execution validation
// (ErrInvalidOperation) and ledger faults surface as errors to the caller.
// A ledger fault leaves no partial state: aggregation and broadcast are
// skipped so a recorded-but-unbroadcast view can never exist in reverse.
func (c *Coordinator) Submit(ctx context.Context, req types.OperationRequest) (*types.TransactionRecord, error) {
	if !types.ValidOperationTypes[req.Type] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, req.Type)
	}

	mu := c.walletLock(req.WalletID)
	mu.Lock()
	defer mu.Unlock()

	// Reserve the record ID up front: if the ledger is unavailable the
	// request fails here, before anything is executed.
	id, err := c.store.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve record id: %w", err)
	}

	rec := c.execute(ctx, id, req)

	if err := c.store.Append(ctx, rec); err != nil {
		c.logger.Error("ledger append failed",
			slog.Int64("id", rec.ID),
			slog.String("wallet_id", req.WalletID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	c.agg.Update(rec)
	c.hub.Publish(types.Event{Transactions: []types.TransactionRecord{*rec}})

	c.logger.Info("operation recorded",
		slog.Int64("id", rec.ID),
		slog.String("operation_type", string(rec.Type)),
		slog.String("status", string(rec.Status)),
		slog.String("wallet_id", rec.WalletID),
	)

	return rec, nil
}

// execute runs the executor and builds the terminal record. The chain call
// is shielded from caller cancellation: a dispatched operation cannot be
// safely aborted, so it always runs to a terminal outcome.
func (c *Coordinator) execute(ctx context.Context, id int64, req types.OperationRequest) *types.TransactionRecord {
	rec := &types.TransactionRecord{
		ID:        id,
		Type:      req.Type,
		WalletID:  req.WalletID,
		Timestamp: time.Now().UTC(),
	}

	result, err := c.runExecutor(ctx, req)
	if err != nil {
		rec.Status = types.StatusFailed
		rec.ErrorDetail = err.Error()
		// A reverted transaction still burned gas; keep the cost visible.
		if result != nil && result.GasUsed > 0 {
			gas := result.GasUsed
			rec.GasUsed = &gas
		}
		return rec
	}

	rec.Status = types.StatusSuccess
	rec.Hash = result.Hash
	if result.GasUsed > 0 {
		gas := result.GasUsed
		rec.GasUsed = &gas
	}
	return rec
}

// runExecutor invokes the adapter, treating a panic the same as a reported
// execution error.
func (c *Coordinator) runExecutor(ctx context.Context, req types.OperationRequest) (result *executor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return c.exec.Execute(context.WithoutCancel(ctx), req.Type, req.Params)
}
