package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chainops/agentdash/pkg/types"
)

// PrometheusMetrics holds all Prometheus metrics for the agent dashboard.
type PrometheusMetrics struct {
	// Operation counters
	OperationsTotal *prometheus.CounterVec

	// Gauges
	ConnectedClients prometheus.Gauge
	SuccessRate      prometheus.Gauge

	// Histograms
	GasUsed prometheus.Histogram
}

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdash_operations_total",
				Help: "Total operations by type and terminal status",
			},
			[]string{"operation_type", "status"},
		),

		ConnectedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentdash_ws_clients",
				Help: "Connected WebSocket subscribers",
			},
		),

		SuccessRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentdash_success_rate",
				Help: "Percentage of recorded operations that succeeded",
			},
		),

		GasUsed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentdash_gas_used",
				Help:    "Gas used per successful operation",
				Buckets: []float64{21000, 50000, 100000, 250000, 500000, 1000000, 3000000},
			},
		),
	}
}

// RecordOperation mirrors one terminal record into Prometheus.
func (m *PrometheusMetrics) RecordOperation(rec *types.TransactionRecord) {
	m.OperationsTotal.WithLabelValues(string(rec.Type), string(rec.Status)).Inc()
	if rec.Status == types.StatusSuccess && rec.GasUsed != nil {
		m.GasUsed.Observe(float64(*rec.GasUsed))
	}
}
