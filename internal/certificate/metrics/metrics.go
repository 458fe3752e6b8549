package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for issuance and verification.
type Metrics struct {
	CertificatesIssued prometheus.Counter
	AnchoringFailures  *prometheus.CounterVec
	Verifications      *prometheus.CounterVec
	IssueDuration      prometheus.Histogram
	VerifyDuration     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "certledger_certificates_issued_total",
			Help: "Certificates anchored on the ledger and persisted",
		}),
		AnchoringFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_anchoring_failures_total",
			Help: "Issuance attempts aborted before persistence, by reason",
		}, []string{"reason"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verifications_total",
			Help: "Verification attempts by outcome (valid, invalid)",
		}, []string{"outcome"}),
		IssueDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_issue_duration_seconds",
			Help:    "Duration of Issue including ledger submission",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		VerifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_verify_duration_seconds",
			Help:    "Duration of Verify including the ledger re-check",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementAnchoringFailure(reason string) {
	m.AnchoringFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementVerification(valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

// ObserveIssue records the duration of an Issue call started at start.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify call started at start.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
