// Package ledger provides the append-only transaction record store.
package ledger

import (
	"context"
	"errors"

	"github.com/chainops/agentdash/pkg/types"
)

// ErrDuplicateID is returned when a record with an already-appended ID is
// appended again. This defends against coordinator bugs; under normal
// operation IDs come from NextID and never collide.
var ErrDuplicateID = errors.New("ledger: duplicate record id")

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	WalletID string
	Status   types.TxStatus
}

// Storage is the persistence interface for transaction records and wallet
// state. Records are immutable once appended.
type Storage interface {
	// NextID reserves the next monotonic record ID.
	NextID(ctx context.Context) (int64, error)

	// Append stores one terminal record. Returns ErrDuplicateID if a record
	// with the same ID already exists.
	Append(ctx context.Context, rec *types.TransactionRecord) error

	// Query returns records most-recent-first (descending timestamp, ties
	// broken by ascending ID).
	Query(ctx context.Context, f Filter, limit, offset int) ([]types.TransactionRecord, error)

	// All streams every record to fn in unspecified order, for aggregate
	// recomputation. Iteration stops at the first error from fn.
	All(ctx context.Context, fn func(rec *types.TransactionRecord) error) error

	// Wallet state (dashboard display)
	SaveWallet(ctx context.Context, w *types.WalletInfo) error
	GetWallet(ctx context.Context, address string) (*types.WalletInfo, error)

	// Lifecycle
	Close() error
}
