package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chainops/agentdash/pkg/types"
)

// MemoryStorage is an in-memory implementation of Storage. It is used in
// tests and as a fallback when no database path is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	lastID  int64
	records []types.TransactionRecord
	byID    map[int64]struct{}
	wallets map[string]types.WalletInfo
}

// NewMemoryStorage creates an empty in-memory ledger.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:    make(map[int64]struct{}),
		wallets: make(map[string]types.WalletInfo),
	}
}

// NextID reserves the next monotonic record ID.
func (s *MemoryStorage) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

// Append stores one terminal record.
func (s *MemoryStorage) Append(ctx context.Context, rec *types.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, rec.ID)
	}

	s.byID[rec.ID] = struct{}{}
	s.records = append(s.records, *rec)
	return nil
}

// Query returns records most-recent-first, ties broken by ascending ID.
func (s *MemoryStorage) Query(ctx context.Context, f Filter, limit, offset int) ([]types.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	matched := make([]types.TransactionRecord, 0, len(s.records))
	for _, rec := range s.records {
		if f.WalletID != "" && rec.WalletID != f.WalletID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID < matched[j].ID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// All streams every record to fn in append order.
func (s *MemoryStorage) All(ctx context.Context, fn func(rec *types.TransactionRecord) error) error {
	s.mu.RLock()
	snapshot := make([]types.TransactionRecord, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	for i := range snapshot {
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// SaveWallet stores wallet state.
func (s *MemoryStorage) SaveWallet(ctx context.Context, w *types.WalletInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.Address] = *w
	return nil
}

// GetWallet returns wallet state, or nil if not found.
func (s *MemoryStorage) GetWallet(ctx context.Context, address string) (*types.WalletInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[address]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the in-memory ledger.
func (s *MemoryStorage) Close() error {
	return nil
}
