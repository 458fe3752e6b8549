// Package service anchors certificate issuance on the ledger and re-checks
// that anchor on verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/address"
	"certledger/internal/audit"
	"certledger/internal/certificate/metrics"
	"certledger/internal/certificate/models"
	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// ExpiryPolicy decides whether an expired certificate can still verify.
type ExpiryPolicy string

const (
	// ExpiryReject makes expired certificates verify as invalid.
	ExpiryReject ExpiryPolicy = "reject"
	// ExpiryIgnore reports expiry but leaves validity to the ledger and revocation.
	ExpiryIgnore ExpiryPolicy = "ignore"
)

// ParseExpiryPolicy accepts "reject" and "ignore".
func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch p := ExpiryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpiryReject, ExpiryIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown expiry policy %q", s)
	}
}

// Verification reasons.
const (
	ReasonRevoked           = "certificate revoked"
	ReasonExpired           = "certificate expired"
	ReasonTxFailed          = "ledger transaction not successful"
	ReasonMemoMismatch      = "ledger memo does not match certificate"
	ReasonTxNotFound        = "ledger transaction not found"
	ReasonLedgerUnavailable = "ledger unavailable"
)

type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	FindBySerial(ctx context.Context, serial string) (*models.Certificate, error)
	ListAll(ctx context.Context) ([]*models.Certificate, error)
}

type VerificationStore interface {
	Create(ctx context.Context, v *models.Verification) error
}

// Ledger is the part of ledger.Gateway used for anchoring.
type Ledger interface {
	CreateAccount(ctx context.Context) (ledger.Account, error)
	SubmitTransaction(ctx context.Context, destination string, memo ledger.Memo) (ledger.SubmitResult, error)
	GetTransaction(ctx context.Context, hash string) (ledger.Transaction, error)
}

// AddressValidator checks caller-supplied destinations before anchoring.
type AddressValidator interface {
	Validate(ctx context.Context, addr string, network ledger.Network, checkExists bool) (address.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates issuance and verification.
type Service struct {
	certificates   CertificateStore
	verifications  VerificationStore
	ledger         Ledger
	addresses      AddressValidator
	network        ledger.Network
	expiryPolicy   ExpiryPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAddressValidator enables destination checks for caller-supplied keys.
func WithAddressValidator(v AddressValidator) Option {
	return func(s *Service) {
		s.addresses = v
	}
}

// WithNetwork sets the network destinations are validated against.
func WithNetwork(n ledger.Network) Option {
	return func(s *Service) {
		s.network = n
	}
}

func WithExpiryPolicy(p ExpiryPolicy) Option {
	return func(s *Service) {
		s.expiryPolicy = p
	}
}

// New constructs a Service.
func New(certificates CertificateStore, verifications VerificationStore, l Ledger, opts ...Option) (*Service, error) {
	if certificates == nil {
		return nil, errors.New("certificate store is required")
	}
	if verifications == nil {
		return nil, errors.New("verification store is required")
	}
	if l == nil {
		return nil, errors.New("ledger gateway is required")
	}
	s := &Service{
		certificates:  certificates,
		verifications: verifications,
		ledger:        l,
		network:       ledger.NetworkTest,
		expiryPolicy:  ExpiryReject,
		tracer:        otel.Tracer("certledger/certificate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Issue anchors the certificate on the ledger and persists it. Nothing is
// persisted unless the ledger reports the transaction successful. Duplicate
// certificate ids are rejected by the store after anchoring; the orphaned
// transaction is logged.
func (s *Service) Issue(ctx context.Context, req *models.IssueRequest) (*models.Certificate, error) {
	start := time.Now()
	defer s.observeIssue(start)

	ctx, span := s.tracer.Start(ctx, "certificate.Issue",
		trace.WithAttributes(attribute.String("certificate.id", req.CertificateID)))
	defer span.End()

	destination, err := s.resolveDestination(ctx, req)
	if err != nil {
		s.failIssue(ctx, span, req.CertificateID, "destination", err)
		return nil, err
	}

	memo := BuildMemo(req.CertificateID)
	res, err := s.ledger.SubmitTransaction(ctx, destination, memo)
	if err != nil {
		de := ledgerError(err, "ledger unavailable, certificate not issued", "anchoring transaction failed")
		s.failIssue(ctx, span, req.CertificateID, string(ledger.CategoryOf(err)), de)
		return nil, de
	}
	if !res.Successful {
		de := dErrors.Newf(dErrors.CodeAnchoringFailed, "ledger transaction failed: %s", res.Error)
		s.failIssue(ctx, span, req.CertificateID, "rejected", de)
		return nil, de
	}

	cert := &models.Certificate{
		ID:                 uuid.New(),
		CertificateID:      req.CertificateID,
		Title:              req.Title,
		Description:        req.Description,
		IssuerName:         req.IssuerName,
		RecipientEmail:     req.RecipientEmail,
		RecipientPublicKey: destination,
		BlockchainTxHash:   res.Hash,
		IssuedAt:           requestcontext.Now(ctx),
		ExpiresAt:          req.ExpiresAt,
		IsRevoked:          false,
	}
	if err := s.certificates.Create(ctx, cert); err != nil {
		s.logger.ErrorContext(ctx, "anchored transaction has no local certificate",
			"certificate_id", req.CertificateID,
			"tx_hash", res.Hash,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		var de *dErrors.Error
		if errors.Is(err, sentinel.ErrConflict) {
			de = dErrors.Newf(dErrors.CodeConflict, "certificate %q already exists", req.CertificateID)
		} else {
			de = dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist certificate")
		}
		s.failIssue(ctx, span, req.CertificateID, "persist", de)
		return nil, de
	}

	span.SetAttributes(attribute.String("ledger.tx_hash", res.Hash))
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	s.logAudit(ctx, string(audit.ActionCertificateIssued),
		"certificate_id", cert.CertificateID,
		"tx_hash", cert.BlockchainTxHash,
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionCertificateIssued,
		Subject:  cert.CertificateID,
		TxHash:   cert.BlockchainTxHash,
		Decision: "issued",
	})
	return cert, nil
}

func (s *Service) resolveDestination(ctx context.Context, req *models.IssueRequest) (string, error) {
	if req.RecipientPublicKey == "" {
		acct, err := s.ledger.CreateAccount(ctx)
		if err != nil {
			return "", ledgerError(err, "ledger unavailable, recipient account not created", "recipient account creation failed")
		}
		return acct.Address, nil
	}
	if s.addresses == nil {
		return req.RecipientPublicKey, nil
	}
	result, err := s.addresses.Validate(ctx, req.RecipientPublicKey, s.network, true)
	if err != nil {
		return "", err
	}
	if !result.IsValid {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "recipientPublicKey is not a valid address: %s", result.Error)
	}
	if result.AccountExists != nil && !*result.AccountExists {
		return "", dErrors.New(dErrors.CodeInvalidInput, "recipientPublicKey does not exist on the ledger")
	}
	return req.RecipientPublicKey, nil
}

// ledgerError maps a failed ledger call to LedgerUnavailable for transient
// faults and AnchoringFailed otherwise.
func ledgerError(err error, unavailableMsg, failedMsg string) *dErrors.Error {
	if ledger.IsUnavailable(err) {
		return dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, unavailableMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeAnchoringFailed, failedMsg)
}

func (s *Service) failIssue(ctx context.Context, span trace.Span, certificateID, reason string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	if s.metrics != nil {
		s.metrics.IncrementAnchoringFailure(reason)
	}
	s.logger.WarnContext(ctx, "certificate issuance aborted",
		"certificate_id", certificateID,
		"reason", reason,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionCertificateAnchoringFailed,
		Subject:  certificateID,
		Decision: "aborted",
		Reason:   dErrors.MessageOf(err),
	})
}

// Verify looks a certificate up by certificate id or tx hash, re-checks its
// ledger transaction and appends a verification record whatever the outcome.
// Ledger failures make the certificate invalid rather than failing the call.
func (s *Service) Verify(ctx context.Context, serial string) (*models.VerificationResult, error) {
	start := time.Now()
	defer s.observeVerify(start)

	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "serial is required")
	}

	ctx, span := s.tracer.Start(ctx, "certificate.Verify",
		trace.WithAttributes(attribute.String("certificate.serial", serial)))
	defer span.End()

	// Captured before the ledger call so the recorded outcome reflects ledger
	// state observed at or after verifiedAt.
	verifiedAt := requestcontext.Now(ctx)

	cert, err := s.certificates.FindBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "certificate with serial %s not found", serial)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}

	blockchainValid, reason := s.checkAnchor(ctx, cert)
	expired := cert.IsExpired(verifiedAt)
	isValid := blockchainValid && !cert.IsRevoked
	switch {
	case cert.IsRevoked:
		reason = ReasonRevoked
	case isValid && expired && s.expiryPolicy == ExpiryReject:
		isValid = false
		reason = ReasonExpired
	}

	record := &models.Verification{
		ID:            uuid.New(),
		CertificateID: cert.ID,
		Success:       isValid,
		VerifiedAt:    verifiedAt,
	}
	if err := s.verifications.Create(ctx, record); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}

	span.SetAttributes(attribute.Bool("certificate.valid", isValid))
	if s.metrics != nil {
		s.metrics.IncrementVerification(isValid)
	}
	decision := "invalid"
	if isValid {
		decision = "valid"
	}
	s.logAudit(ctx, string(audit.ActionCertificateVerified),
		"certificate_id", cert.CertificateID,
		"decision", decision,
		"reason", reason,
	)
	s.emitAudit(ctx, audit.Event{
		Timestamp: verifiedAt,
		Action:    audit.ActionCertificateVerified,
		Subject:   cert.CertificateID,
		TxHash:    cert.BlockchainTxHash,
		Decision:  decision,
		Reason:    reason,
	})

	return &models.VerificationResult{
		Certificate:     *cert,
		IsValid:         isValid,
		BlockchainValid: blockchainValid,
		Expired:         expired,
		Reason:          reason,
		VerifiedAt:      verifiedAt,
	}, nil
}

// checkAnchor reports whether the certificate's ledger claim holds. A
// certificate without a tx hash makes no claim and passes.
func (s *Service) checkAnchor(ctx context.Context, cert *models.Certificate) (bool, string) {
	if cert.BlockchainTxHash == "" {
		return true, ""
	}
	tx, err := s.ledger.GetTransaction(ctx, cert.BlockchainTxHash)
	if err != nil {
		reason := ReasonLedgerUnavailable
		if ledger.IsNotFound(err) {
			reason = ReasonTxNotFound
		}
		s.logger.WarnContext(ctx, "ledger re-check failed",
			"certificate_id", cert.CertificateID,
			"tx_hash", cert.BlockchainTxHash,
			"category", ledger.CategoryOf(err),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, reason
	}
	if !tx.Successful {
		return false, ReasonTxFailed
	}
	if !memoMatches(tx, cert.CertificateID) {
		return false, ReasonMemoMismatch
	}
	return true, ""
}

// ListCertificates returns every certificate, newest first.
func (s *Service) ListCertificates(ctx context.Context) ([]*models.Certificate, error) {
	certs, err := s.certificates.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	if certs == nil {
		certs = []*models.Certificate{}
	}
	return certs, nil
}

// GetCertificate fetches one certificate by its internal id.
func (s *Service) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "certificate id must be a UUID")
	}
	cert, err := s.certificates.FindByID(ctx, parsed)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "certificate with ID %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append(attrs, "event", event, "log_type", "audit", "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) observeIssue(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveIssue(start)
	}
}

func (s *Service) observeVerify(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(start)
	}
}
