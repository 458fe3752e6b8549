package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks address validation outcomes, cache efficiency and the
// existence checks that reach (or are kept from) the ledger.
type Metrics struct {
	Validations        *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	ExistenceChecks    *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
}

// New registers the address metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_address_validations_total",
			Help: "Address validations by outcome (valid, invalid)",
		}, []string{"outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_address_cache_lookups_total",
			Help: "Validation cache lookups by result (hit, miss)",
		}, []string{"result"}),
		ExistenceChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_address_existence_checks_total",
			Help: "Account existence checks by outcome (checked, rate_limited, unavailable)",
		}, []string{"outcome"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_address_validation_duration_seconds",
			Help:    "Duration of single address validations including ledger lookups",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementValidation(valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.Validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementExistenceCheck(outcome string) {
	m.ExistenceChecks.WithLabelValues(outcome).Inc()
}

// ObserveValidation records time since start.
func (m *Metrics) ObserveValidation(start time.Time) {
	m.ValidationDuration.Observe(time.Since(start).Seconds())
}
