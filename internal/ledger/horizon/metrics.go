package horizon

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks Horizon round trips.
type Metrics struct {
	CallDuration *prometheus.HistogramVec
	CallErrors   *prometheus.CounterVec
	BreakerOpen  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_ledger_call_duration_seconds",
			Help:    "Duration of Horizon calls by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		CallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_ledger_call_errors_total",
			Help: "Failed Horizon calls by operation and error category",
		}, []string{"op", "category"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_ledger_circuit_open",
			Help: "1 while the ledger circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(op string, start time.Time) {
	m.CallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) incrementError(op, category string) {
	m.CallErrors.WithLabelValues(op, category).Inc()
}

func (m *Metrics) setBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
