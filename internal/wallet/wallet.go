// Package wallet tracks the agent wallet's on-chain state.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/chainops/agentdash/internal/ledger"
	"github.com/chainops/agentdash/internal/rpc"
	"github.com/chainops/agentdash/pkg/types"
)

// Wallet is a cached view of the agent wallet. Balance is refreshed on
// demand and persisted so a restart can serve wallet info before the chain
// is reachable.
type Wallet struct {
	address string
	network string
	client  rpc.Client
	store   ledger.Storage
	logger  *slog.Logger

	mu      sync.RWMutex
	balance *big.Int
}

// New creates a wallet view for a hex address on a named network.
func New(address, network string, client rpc.Client, store ledger.Storage, logger *slog.Logger) *Wallet {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wallet{
		address: address,
		network: network,
		client:  client,
		store:   store,
		logger:  logger,
		balance: big.NewInt(0),
	}
}

// Address returns the wallet's hex address.
func (w *Wallet) Address() string {
	return w.address
}

// Restore loads the last persisted wallet snapshot, if any. Missing state
// is not an error; the balance stays zero until the first Refresh.
func (w *Wallet) Restore(ctx context.Context) error {
	info, err := w.store.GetWallet(ctx, w.address)
	if err != nil {
		return fmt.Errorf("failed to load wallet state: %w", err)
	}
	if info == nil {
		return nil
	}

	balance, ok := new(big.Int).SetString(info.Balance, 10)
	if !ok {
		return fmt.Errorf("corrupt persisted balance %q", info.Balance)
	}

	w.mu.Lock()
	w.balance = balance
	w.mu.Unlock()
	return nil
}

// Refresh fetches the current balance from the chain and persists it.
func (w *Wallet) Refresh(ctx context.Context) error {
	balance, err := w.client.GetBalance(ctx, w.address)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	w.mu.Lock()
	w.balance = balance
	info := w.info()
	w.mu.Unlock()

	if err := w.store.SaveWallet(ctx, info); err != nil {
		return fmt.Errorf("failed to persist wallet state: %w", err)
	}

	w.logger.Debug("wallet refreshed",
		slog.String("address", w.address),
		slog.String("balance", balance.String()),
	)
	return nil
}

// Info returns the current wallet snapshot.
func (w *Wallet) Info() *types.WalletInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.info()
}

// info builds a snapshot. Callers must hold w.mu.
func (w *Wallet) info() *types.WalletInfo {
	return &types.WalletInfo{
		Address: w.address,
		Network: w.network,
		Balance: w.balance.String(),
	}
}
