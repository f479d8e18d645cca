package aggregator

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chainops/agentdash/pkg/types"
)

func gas(v uint64) *uint64 { return &v }

func successRec(id int64, gasUsed *uint64, ts time.Time) *types.TransactionRecord {
	return &types.TransactionRecord{
		ID:        id,
		Type:      types.OpTransferAsset,
		WalletID:  "w1",
		Status:    types.StatusSuccess,
		GasUsed:   gasUsed,
		Timestamp: ts,
	}
}

func failedRec(id int64, ts time.Time) *types.TransactionRecord {
	return &types.TransactionRecord{
		ID:        id,
		Type:      types.OpDeployToken,
		WalletID:  "w1",
		Status:    types.StatusFailed,
		Timestamp: ts,
	}
}

func TestAggregator_EmptySnapshot(t *testing.T) {
	a := New()
	snap := a.Snapshot()

	if snap.OverallStats.TotalOperations != 0 {
		t.Errorf("expected 0 operations, got %d", snap.OverallStats.TotalOperations)
	}
	if snap.OverallStats.SuccessRate != 0 {
		t.Errorf("expected success rate 0 with no records, got %f", snap.OverallStats.SuccessRate)
	}
	if len(snap.GasTrends) != 0 {
		t.Errorf("expected no gas trends, got %d", len(snap.GasTrends))
	}
}

func TestAggregator_SuccessRate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		records  []*types.TransactionRecord
		wantRate float64
	}{
		{
			name:     "all successful",
			records:  []*types.TransactionRecord{successRec(1, gas(21000), now), successRec(2, gas(21000), now)},
			wantRate: 100,
		},
		{
			name:     "all failed",
			records:  []*types.TransactionRecord{failedRec(1, now), failedRec(2, now)},
			wantRate: 0,
		},
		{
			name:     "mixed",
			records:  []*types.TransactionRecord{successRec(1, gas(21000), now), failedRec(2, now), failedRec(3, now), successRec(4, gas(21000), now)},
			wantRate: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			for _, rec := range tt.records {
				a.Update(rec)
			}
			snap := a.Snapshot()
			if math.Abs(snap.OverallStats.SuccessRate-tt.wantRate) > 1e-9 {
				t.Errorf("expected success rate %f, got %f", tt.wantRate, snap.OverallStats.SuccessRate)
			}
		})
	}
}

func TestAggregator_IgnoresPending(t *testing.T) {
	a := New()
	a.Update(&types.TransactionRecord{ID: 1, Status: types.StatusPending, Timestamp: time.Now()})

	snap := a.Snapshot()
	if snap.OverallStats.TotalOperations != 0 {
		t.Errorf("pending record should not be folded, got total %d", snap.OverallStats.TotalOperations)
	}
}

func TestAggregator_PerTypeBreakdown(t *testing.T) {
	a := New()
	now := time.Now()

	a.Update(successRec(1, gas(21000), now))
	a.Update(successRec(2, gas(41000), now))
	a.Update(failedRec(3, now)) // deploy_token
	a.Update(&types.TransactionRecord{
		ID: 4, Type: types.OpTransferAsset, WalletID: "w1",
		Status: types.StatusFailed, Timestamp: now,
	})

	snap := a.Snapshot()
	if len(snap.OperationTypes) != 2 {
		t.Fatalf("expected 2 operation types, got %d: %+v", len(snap.OperationTypes), snap.OperationTypes)
	}

	transfer := snap.OperationTypes[string(types.OpTransferAsset)]
	if transfer.TotalOperations != 3 {
		t.Errorf("transfer total: expected 3, got %d", transfer.TotalOperations)
	}
	if math.Abs(transfer.SuccessRate-100.0/1.5) > 1e-9 {
		t.Errorf("transfer success rate: expected %f, got %f", 100.0/1.5, transfer.SuccessRate)
	}
	if transfer.AvgGasUsed != 31000 {
		t.Errorf("transfer avg gas: expected 31000, got %f", transfer.AvgGasUsed)
	}

	deploy := snap.OperationTypes[string(types.OpDeployToken)]
	if deploy.TotalOperations != 1 || deploy.SuccessRate != 0 || deploy.AvgGasUsed != 0 {
		t.Errorf("unexpected deploy stats: %+v", deploy)
	}
}

func TestAggregator_SuccessRateGauge(t *testing.T) {
	prom := NewPrometheusMetrics(prometheus.NewRegistry())
	a := New().WithPrometheus(prom)
	now := time.Now()

	a.Update(successRec(1, gas(21000), now))
	if got := testutil.ToFloat64(prom.SuccessRate); got != 100 {
		t.Errorf("gauge after one success: expected 100, got %f", got)
	}

	a.Update(failedRec(2, now))
	if got := testutil.ToFloat64(prom.SuccessRate); got != 50 {
		t.Errorf("gauge after one failure: expected 50, got %f", got)
	}

	// Rebuild refreshes the gauge too.
	rebuiltProm := NewPrometheusMetrics(prometheus.NewRegistry())
	rebuilt := New().WithPrometheus(rebuiltProm)
	err := rebuilt.Rebuild(func(fn func(rec *types.TransactionRecord) error) error {
		if err := fn(successRec(1, gas(21000), now)); err != nil {
			return err
		}
		return fn(failedRec(2, now))
	})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := testutil.ToFloat64(rebuiltProm.SuccessRate); got != 50 {
		t.Errorf("gauge after rebuild: expected 50, got %f", got)
	}
}

func TestAggregator_GasTrends(t *testing.T) {
	a := New()
	day1 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	a.Update(successRec(1, gas(21000), day2))
	a.Update(successRec(2, gas(41000), day2))
	a.Update(successRec(3, gas(100000), day1))
	// Failed and gas-less records must not create trend entries.
	a.Update(failedRec(4, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)))
	a.Update(successRec(5, nil, time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)))

	snap := a.Snapshot()
	if len(snap.GasTrends) != 2 {
		t.Fatalf("expected 2 trend days, got %d: %+v", len(snap.GasTrends), snap.GasTrends)
	}

	// Ascending by date
	if snap.GasTrends[0].Date != "2026-08-29" || snap.GasTrends[1].Date != "2026-08-30" {
		t.Errorf("unexpected trend order: %+v", snap.GasTrends)
	}
	if snap.GasTrends[0].AvgGasUsed != 100000 {
		t.Errorf("day1 avg: expected 100000, got %f", snap.GasTrends[0].AvgGasUsed)
	}
	if snap.GasTrends[1].AvgGasUsed != 31000 {
		t.Errorf("day2 avg: expected 31000, got %f", snap.GasTrends[1].AvgGasUsed)
	}
	if snap.GasTrends[1].TotalOperations != 2 {
		t.Errorf("day2 count: expected 2, got %d", snap.GasTrends[1].TotalOperations)
	}
}

func TestAggregator_RebuildMatchesIncremental(t *testing.T) {
	base := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	var records []*types.TransactionRecord
	for i := int64(1); i <= 200; i++ {
		ts := base.Add(time.Duration(i) * 3 * time.Hour)
		if i%3 == 0 {
			records = append(records, failedRec(i, ts))
		} else {
			records = append(records, successRec(i, gas(21000+uint64(i)*100), ts))
		}
	}

	incremental := New()
	for _, rec := range records {
		incremental.Update(rec)
	}

	// Rebuild from a shuffled copy: aggregation must be order-independent.
	shuffled := make([]*types.TransactionRecord, len(records))
	copy(shuffled, records)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	rebuilt := New()
	err := rebuilt.Rebuild(func(fn func(rec *types.TransactionRecord) error) error {
		for _, rec := range shuffled {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	a, b := incremental.Snapshot(), rebuilt.Snapshot()
	if a.OverallStats != b.OverallStats {
		t.Errorf("overall stats differ: %+v vs %+v", a.OverallStats, b.OverallStats)
	}
	if len(a.GasTrends) != len(b.GasTrends) {
		t.Fatalf("trend lengths differ: %d vs %d", len(a.GasTrends), len(b.GasTrends))
	}
	for i := range a.GasTrends {
		if a.GasTrends[i] != b.GasTrends[i] {
			t.Errorf("trend %d differs: %+v vs %+v", i, a.GasTrends[i], b.GasTrends[i])
		}
	}
	if len(a.OperationTypes) != len(b.OperationTypes) {
		t.Fatalf("per-type lengths differ: %d vs %d", len(a.OperationTypes), len(b.OperationTypes))
	}
	for op, st := range a.OperationTypes {
		if b.OperationTypes[op] != st {
			t.Errorf("per-type stats for %s differ: %+v vs %+v", op, st, b.OperationTypes[op])
		}
	}
}

func TestAggregator_ConcurrentUpdates(t *testing.T) {
	a := New()
	now := time.Now()

	var wg sync.WaitGroup
	numGoroutines := 10
	perGoroutine := 100

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id := int64(g*perGoroutine + i)
				if i%2 == 0 {
					a.Update(successRec(id, gas(21000), now))
				} else {
					a.Update(failedRec(id, now))
				}
			}
		}(g)
	}
	wg.Wait()

	snap := a.Snapshot()
	want := int64(numGoroutines * perGoroutine)
	if snap.OverallStats.TotalOperations != want {
		t.Errorf("expected %d operations, got %d", want, snap.OverallStats.TotalOperations)
	}
	if math.Abs(snap.OverallStats.SuccessRate-50) > 1e-9 {
		t.Errorf("expected 50%% success rate, got %f", snap.OverallStats.SuccessRate)
	}
}
