package models

import (
	"net/mail"
	"strings"
	"time"

	dErrors "certledger/pkg/domain-errors"
)

const (
	maxCertificateIDLength = 128
	maxTitleLength         = 256
)

// IssueRequest is the payload for issuing a certificate. RecipientPublicKey is
// optional; without it a fresh ledger account is created as destination.
type IssueRequest struct {
	CertificateID      string     `json:"certificateId"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	IssuerName         string     `json:"issuerName"`
	RecipientEmail     string     `json:"recipientEmail"`
	RecipientPublicKey string     `json:"recipientPublicKey,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

func (r *IssueRequest) Normalize() {
	r.CertificateID = strings.TrimSpace(r.CertificateID)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.RecipientEmail = strings.ToLower(strings.TrimSpace(r.RecipientEmail))
	r.RecipientPublicKey = strings.TrimSpace(r.RecipientPublicKey)
}

func (r *IssueRequest) Validate() error {
	switch {
	case r.CertificateID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "certificateId is required")
	case len(r.CertificateID) > maxCertificateIDLength:
		return dErrors.Newf(dErrors.CodeInvalidInput, "certificateId must be at most %d characters", maxCertificateIDLength)
	case r.Title == "":
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	case len(r.Title) > maxTitleLength:
		return dErrors.Newf(dErrors.CodeInvalidInput, "title must be at most %d characters", maxTitleLength)
	case r.IssuerName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "issuerName is required")
	case r.RecipientEmail == "":
		return dErrors.New(dErrors.CodeInvalidInput, "recipientEmail is required")
	}
	if addr, err := mail.ParseAddress(r.RecipientEmail); err != nil || addr.Address != r.RecipientEmail {
		return dErrors.New(dErrors.CodeInvalidInput, "recipientEmail must be a valid email address")
	}
	return nil
}
