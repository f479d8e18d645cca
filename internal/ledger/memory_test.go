package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainops/agentdash/pkg/types"
)

func mkRecord(id int64, wallet string, status types.TxStatus, ts time.Time) *types.TransactionRecord {
	return &types.TransactionRecord{
		ID:        id,
		Type:      types.OpTransferAsset,
		WalletID:  wallet,
		Status:    status,
		Timestamp: ts,
	}
}

func TestMemoryStorage_AppendAndQuery(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id, err := s.NextID(ctx)
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if err := s.Append(ctx, mkRecord(id, "w1", types.StatusSuccess, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := s.Query(ctx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Most recent first
	if records[0].ID != 3 || records[2].ID != 1 {
		t.Errorf("expected descending timestamp order, got ids %d,%d,%d",
			records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestMemoryStorage_QueryTieBreak(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Same timestamp: ties broken by ascending ID
	for i := int64(1); i <= 3; i++ {
		if err := s.Append(ctx, mkRecord(i, "w1", types.StatusSuccess, ts)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := s.Query(ctx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for i, rec := range records {
		if rec.ID != int64(i+1) {
			t.Errorf("position %d: expected id %d, got %d", i, i+1, rec.ID)
		}
	}
}

func TestMemoryStorage_DuplicateID(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	rec := mkRecord(1, "w1", types.StatusSuccess, time.Now())
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	err := s.Append(ctx, rec)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 record, got %d", s.Len())
	}
}

func TestMemoryStorage_QueryFilters(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	s.Append(ctx, mkRecord(1, "w1", types.StatusSuccess, now))
	s.Append(ctx, mkRecord(2, "w2", types.StatusFailed, now.Add(time.Second)))
	s.Append(ctx, mkRecord(3, "w1", types.StatusFailed, now.Add(2*time.Second)))

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []int64
	}{
		{"by wallet", Filter{WalletID: "w1"}, []int64{3, 1}},
		{"by status", Filter{Status: types.StatusFailed}, []int64{3, 2}},
		{"wallet and status", Filter{WalletID: "w1", Status: types.StatusSuccess}, []int64{1}},
		{"no match", Filter{WalletID: "w9"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.Query(ctx, tt.filter, 10, 0)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("expected %d records, got %d", len(tt.wantIDs), len(records))
			}
			for i, id := range tt.wantIDs {
				if records[i].ID != id {
					t.Errorf("position %d: expected id %d, got %d", i, id, records[i].ID)
				}
			}
		})
	}
}

func TestMemoryStorage_QueryPagination(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	base := time.Now()

	for i := int64(1); i <= 5; i++ {
		s.Append(ctx, mkRecord(i, "w1", types.StatusSuccess, base.Add(time.Duration(i)*time.Second)))
	}

	page, err := s.Query(ctx, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 2 {
		t.Errorf("unexpected page: %+v", page)
	}

	// Offset beyond range
	page, err = s.Query(ctx, Filter{}, 2, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("expected empty page, got %d records", len(page))
	}
}

func TestMemoryStorage_All(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	for i := int64(1); i <= 3; i++ {
		s.Append(ctx, mkRecord(i, "w1", types.StatusSuccess, now))
	}

	var seen []int64
	err := s.All(ctx, func(rec *types.TransactionRecord) error {
		seen = append(seen, rec.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 records, got %d", len(seen))
	}
}

func TestMemoryStorage_Wallet(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	got, err := s.GetWallet(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for unknown wallet")
	}

	w := &types.WalletInfo{Address: "0xabc", Network: "base-sepolia", Balance: "1000"}
	if err := s.SaveWallet(ctx, w); err != nil {
		t.Fatalf("SaveWallet: %v", err)
	}

	got, err = s.GetWallet(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got == nil || got.Balance != "1000" {
		t.Errorf("unexpected wallet: %+v", got)
	}
}
