package stats

import (
	"fmt"
	"time"

	"certledger/internal/certificate/models"
	dErrors "certledger/pkg/domain-errors"
)

// Query narrows the certificate counts of a snapshot. Verification totals are
// never filtered.
type Query struct {
	StartDate  *time.Time
	EndDate    *time.Time
	IssuerName string
}

// Validate rejects inverted ranges.
func (q Query) Validate() error {
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return dErrors.New(dErrors.CodeInvalidInput, "endDate must not be before startDate")
	}
	return nil
}

// CacheKey identifies the snapshot for this query.
func (q Query) CacheKey() string {
	return fmt.Sprintf("cert-stats:%s|%s|%s", formatBound(q.StartDate), formatBound(q.EndDate), q.IssuerName)
}

func (q Query) filter() models.CertificateFilter {
	return models.CertificateFilter{
		IssuedFrom: q.StartDate,
		IssuedTo:   q.EndDate,
		IssuerName: q.IssuerName,
	}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Snapshot is the combined statistics answer.
type Snapshot struct {
	TotalCertificates   int                  `json:"totalCertificates"`
	ActiveCertificates  int                  `json:"activeCertificates"`
	RevokedCertificates int                  `json:"revokedCertificates"`
	ExpiredCertificates int                  `json:"expiredCertificates"`
	IssuanceTrend       []models.DailyCount  `json:"issuanceTrend"`
	TopIssuers          []models.IssuerCount `json:"topIssuers"`
	VerificationStats   VerificationStats    `json:"verificationStats"`
	GeneratedAt         time.Time            `json:"generatedAt"`
}

type VerificationStats struct {
	TotalVerifications      int `json:"totalVerifications"`
	SuccessfulVerifications int `json:"successfulVerifications"`
	FailedVerifications     int `json:"failedVerifications"`
	DailyVerifications      int `json:"dailyVerifications"`
	WeeklyVerifications     int `json:"weeklyVerifications"`
}
