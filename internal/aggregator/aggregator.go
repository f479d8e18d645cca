// Package aggregator maintains derived operation statistics.
//
// The aggregate is an order-independent fold over terminal transaction
// records: counters and per-day gas sums only, so a snapshot is O(distinct
// days) and the whole state can be rebuilt from the ledger at startup.
package aggregator

import (
	"sort"
	"sync"

	"github.com/chainops/agentdash/pkg/types"
)

// dayStats accumulates gas usage for one calendar day.
type dayStats struct {
	gasSum   uint64
	gasCount int64
}

// typeStats accumulates outcomes for one operation type.
type typeStats struct {
	total     int64
	succeeded int64
	gasSum    uint64
	gasCount  int64
}

// Aggregator folds terminal records into running counters. All state is
// guarded by its own mutex, never shared with dispatch locking.
type Aggregator struct {
	mu sync.Mutex

	total     int64
	succeeded int64
	gasSum    uint64
	gasCount  int64
	days      map[string]*dayStats // key: YYYY-MM-DD (UTC)
	opTypes   map[types.OperationType]*typeStats

	prom *PrometheusMetrics // optional
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		days:    make(map[string]*dayStats),
		opTypes: make(map[types.OperationType]*typeStats),
	}
}

// WithPrometheus attaches a Prometheus exporter. Updates are mirrored to it.
func (a *Aggregator) WithPrometheus(prom *PrometheusMetrics) *Aggregator {
	a.prom = prom
	return a
}

// Update folds one new terminal record into the aggregate. Non-terminal
// records are ignored.
func (a *Aggregator) Update(rec *types.TransactionRecord) {
	if !rec.Terminal() {
		return
	}

	a.mu.Lock()
	a.fold(rec)
	rate := a.successRate()
	a.mu.Unlock()

	if a.prom != nil {
		a.prom.RecordOperation(rec)
		a.prom.SuccessRate.Set(rate)
	}
}

// fold applies one record to the counters. Called with the lock held.
func (a *Aggregator) fold(rec *types.TransactionRecord) {
	a.total++
	ts, ok := a.opTypes[rec.Type]
	if !ok {
		ts = &typeStats{}
		a.opTypes[rec.Type] = ts
	}
	ts.total++

	if rec.Status != types.StatusSuccess {
		return
	}
	a.succeeded++
	ts.succeeded++

	if rec.GasUsed == nil {
		return
	}
	a.gasSum += *rec.GasUsed
	a.gasCount++
	ts.gasSum += *rec.GasUsed
	ts.gasCount++

	day := rec.Timestamp.UTC().Format("2006-01-02")
	d, ok := a.days[day]
	if !ok {
		d = &dayStats{}
		a.days[day] = d
	}
	d.gasSum += *rec.GasUsed
	d.gasCount++
}

// successRate returns the overall success percentage. Called with the lock
// held.
func (a *Aggregator) successRate() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.succeeded) / float64(a.total) * 100
}

// Rebuild resets the aggregate and refolds every record supplied by iter.
// Producing the same snapshot as incremental updates relies on the fold
// being commutative, which it is: counters and sums only.
func (a *Aggregator) Rebuild(iter func(fn func(rec *types.TransactionRecord) error) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total = 0
	a.succeeded = 0
	a.gasSum = 0
	a.gasCount = 0
	a.days = make(map[string]*dayStats)
	a.opTypes = make(map[types.OperationType]*typeStats)

	err := iter(func(rec *types.TransactionRecord) error {
		if rec.Terminal() {
			a.fold(rec)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if a.prom != nil {
		a.prom.SuccessRate.Set(a.successRate())
	}
	return nil
}

// Snapshot returns the current derived view. Success rate is a percentage,
// 0 when no records exist. Gas trends cover only days with at least one
// successful gas-bearing record, ascending by date.
func (a *Aggregator) Snapshot() types.MetricsReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := types.OverallStats{
		TotalOperations: a.total,
		SuccessRate:     a.successRate(),
	}
	if a.gasCount > 0 {
		stats.AvgGasUsed = float64(a.gasSum) / float64(a.gasCount)
	}

	trends := make([]types.GasTrendPoint, 0, len(a.days))
	for day, d := range a.days {
		trends = append(trends, types.GasTrendPoint{
			Date:            day,
			AvgGasUsed:      float64(d.gasSum) / float64(d.gasCount),
			TotalOperations: d.gasCount,
		})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })

	perType := make(map[string]types.OperationStats, len(a.opTypes))
	for op, ts := range a.opTypes {
		st := types.OperationStats{TotalOperations: ts.total}
		if ts.total > 0 {
			st.SuccessRate = float64(ts.succeeded) / float64(ts.total) * 100
		}
		if ts.gasCount > 0 {
			st.AvgGasUsed = float64(ts.gasSum) / float64(ts.gasCount)
		}
		perType[string(op)] = st
	}

	return types.MetricsReport{OverallStats: stats, GasTrends: trends, OperationTypes: perType}
}
