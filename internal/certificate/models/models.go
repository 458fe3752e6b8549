package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is an issued certificate. BlockchainTxHash is set once, from a
// ledger submission that reported success, and never changes.
type Certificate struct {
	ID                 uuid.UUID  `json:"id"`
	CertificateID      string     `json:"certificateId"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	IssuerName         string     `json:"issuerName"`
	RecipientEmail     string     `json:"recipientEmail"`
	RecipientPublicKey string     `json:"recipientPublicKey,omitempty"`
	BlockchainTxHash   string     `json:"blockchainTxHash,omitempty"`
	IssuedAt           time.Time  `json:"issuedAt"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	IsRevoked          bool       `json:"isRevoked"`
}

// IsExpired is evaluated at read time; expiry is never stored.
func (c *Certificate) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Verification is one append-only verification attempt.
type Verification struct {
	ID            uuid.UUID `json:"id"`
	CertificateID uuid.UUID `json:"certificateId"`
	Success       bool      `json:"success"`
	VerifiedAt    time.Time `json:"verifiedAt"`
}

// VerificationResult is what a verify call reports back.
type VerificationResult struct {
	Certificate
	IsValid         bool      `json:"isValid"`
	BlockchainValid bool      `json:"blockchainValid"`
	Expired         bool      `json:"expired"`
	Reason          string    `json:"reason,omitempty"`
	VerifiedAt      time.Time `json:"verifiedAt"`
}

// CertificateFilter narrows certificate counts. Zero fields match everything.
type CertificateFilter struct {
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	IssuerName string
	Revoked    *bool
	// ExpiredAt matches certificates whose expiresAt is before it.
	ExpiredAt *time.Time
}

// Matches applies the filter to one certificate, for in-memory stores.
func (f CertificateFilter) Matches(c *Certificate) bool {
	if f.IssuedFrom != nil && c.IssuedAt.Before(*f.IssuedFrom) {
		return false
	}
	if f.IssuedTo != nil && c.IssuedAt.After(*f.IssuedTo) {
		return false
	}
	if f.IssuerName != "" && c.IssuerName != f.IssuerName {
		return false
	}
	if f.Revoked != nil && c.IsRevoked != *f.Revoked {
		return false
	}
	if f.ExpiredAt != nil && !c.IsExpired(*f.ExpiredAt) {
		return false
	}
	return true
}

// VerificationFilter narrows verification counts.
type VerificationFilter struct {
	Success *bool
	Since   *time.Time
}

func (f VerificationFilter) Matches(v *Verification) bool {
	if f.Success != nil && v.Success != *f.Success {
		return false
	}
	if f.Since != nil && v.VerifiedAt.Before(*f.Since) {
		return false
	}
	return true
}

// DailyCount is one bucket of the issuance trend. Date is YYYY-MM-DD in UTC.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type IssuerCount struct {
	IssuerName       string `json:"issuerName"`
	CertificateCount int    `json:"certificateCount"`
}
