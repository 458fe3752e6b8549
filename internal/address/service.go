package address

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"certledger/internal/address/metrics"
	"certledger/internal/audit"
	"certledger/internal/ledger"
	"certledger/internal/platform/ttlcache"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

// Notes attached when an existence check could not be answered.
const (
	NoteRateLimited = "Account existence check skipped: rate limit exceeded"
	NoteUnavailable = "Account existence check failed: ledger unavailable"
)

const bulkConcurrency = 8

// AccountChecker is the slice of the ledger gateway the validator needs.
type AccountChecker interface {
	AccountExists(ctx context.Context, address string, network ledger.Network) (ledger.AccountStatus, error)
}

// Limiter guards existence checks.
type Limiter interface {
	TryAcquire() bool
}

// AuditPublisher records administrative actions on the cache.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates addresses with a shared result cache and a shared
// existence-check limiter.
type Service struct {
	checker        AccountChecker
	cache          *ttlcache.Cache[CacheKey, Result]
	limiter        Limiter
	defaultNetwork ledger.Network
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithDefaultNetwork sets the network used when a request names none.
func WithDefaultNetwork(n ledger.Network) Option {
	return func(s *Service) {
		s.defaultNetwork = n
	}
}

// New constructs a Service. The cache and limiter are shared by every caller.
func New(checker AccountChecker, cache *ttlcache.Cache[CacheKey, Result], limiter Limiter, opts ...Option) (*Service, error) {
	if checker == nil {
		return nil, errors.New("account checker is required")
	}
	if cache == nil {
		return nil, errors.New("validation cache is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	s := &Service{
		checker:        checker,
		cache:          cache,
		limiter:        limiter,
		defaultNetwork: ledger.NetworkTest,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Validate classifies address on network and, if asked and the address is
// valid, checks that the account exists. Existence checks are best effort:
// throttled or failed lookups leave AccountExists unset with a Note and are
// not cached.
func (s *Service) Validate(ctx context.Context, address string, network ledger.Network, checkExists bool) (Result, error) {
	start := time.Now()
	defer s.observeValidation(start)

	if network == "" {
		network = s.defaultNetwork
	}
	key := CacheKey{Address: address, Network: network, CheckExists: checkExists}
	if cached, ok := s.cache.Get(key); ok {
		s.recordCacheLookup(true)
		return cached.clone(), nil
	}
	s.recordCacheLookup(false)

	c := Classify(address, network)
	result := Result{
		Address:         address,
		Network:         network,
		IsFormatValid:   c.FormatValid,
		IsChecksumValid: c.ChecksumValid,
		IsNetworkValid:  c.NetworkValid,
		IsValid:         c.Valid(),
		Error:           c.Error,
	}
	s.recordValidation(result.IsValid)

	if !checkExists || !result.IsValid {
		s.cache.Set(key, result.clone())
		return result, nil
	}

	if !s.limiter.TryAcquire() {
		s.recordExistenceCheck("rate_limited")
		s.logger.WarnContext(ctx, "account existence check rate limited",
			"address", address,
			"network", network,
			"request_id", requestcontext.RequestID(ctx),
		)
		result.Note = NoteRateLimited
		return result, nil
	}

	status, err := s.checker.AccountExists(ctx, address, network)
	if err != nil {
		s.recordExistenceCheck("unavailable")
		s.logger.WarnContext(ctx, "account existence check failed",
			"address", address,
			"network", network,
			"category", ledger.CategoryOf(err),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		result.Note = NoteUnavailable
		return result, nil
	}
	s.recordExistenceCheck("checked")

	exists := status.Exists
	result.AccountExists = &exists
	result.AccountDetails = status.Details
	s.cache.Set(key, result.clone())
	return result, nil
}

// ValidateBulk validates every address concurrently; results keep input order.
func (s *Service) ValidateBulk(ctx context.Context, addresses []string, network ledger.Network, checkExists bool) (BulkResult, error) {
	if len(addresses) == 0 {
		return BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, "addresses must not be empty")
	}
	if len(addresses) > MaxBulkAddresses {
		return BulkResult{}, dErrors.Newf(dErrors.CodeInvalidInput, "at most %d addresses per request", MaxBulkAddresses)
	}

	results := make([]Result, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			r, err := s.Validate(gctx, addr, network, checkExists)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BulkResult{}, err
	}

	out := BulkResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.IsValid {
			out.Valid++
		} else {
			out.Invalid++
		}
	}
	return out, nil
}

// ClearCache drops every cached validation.
func (s *Service) ClearCache(ctx context.Context) {
	size := s.cache.Len()
	s.cache.Clear()
	s.logger.InfoContext(ctx, "address validation cache cleared",
		"entries", size,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:   audit.ActionAddressCacheCleared,
		Subject:  "address-validation-cache",
		Decision: "cleared",
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", audit.ActionAddressCacheCleared,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) CacheStats() CacheStats {
	st := s.cache.Stats()
	return newCacheStats(st.Size, st.MaxSize, st.TTL)
}

// DefaultNetwork is the network assumed for requests that name none.
func (s *Service) DefaultNetwork() ledger.Network {
	return s.defaultNetwork
}

func (s *Service) recordValidation(valid bool) {
	if s.metrics != nil {
		s.metrics.IncrementValidation(valid)
	}
}

func (s *Service) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(hit)
	}
}

func (s *Service) recordExistenceCheck(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementExistenceCheck(outcome)
	}
}

func (s *Service) observeValidation(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveValidation(start)
	}
}
