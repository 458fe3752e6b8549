package address

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AccountChecker,Limiter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certledger/internal/address/metrics"
	"certledger/internal/address/mocks"
	"certledger/internal/audit"
	"certledger/internal/audit/store/memory"
	"certledger/internal/ledger"
	"certledger/internal/platform/ttlcache"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	checker *mocks.MockAccountChecker
	limiter *mocks.MockLimiter
	cache   *ttlcache.Cache[CacheKey, Result]
	metrics *metrics.Metrics
	service *Service

	mu  sync.Mutex
	now time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ServiceSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.checker = mocks.NewMockAccountChecker(s.ctrl)
	s.limiter = mocks.NewMockLimiter(s.ctrl)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache, err := ttlcache.New[CacheKey, Result](1000, 5*time.Minute, ttlcache.WithClock[CacheKey, Result](s.clock))
	s.Require().NoError(err)
	s.cache = cache
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(s.checker, s.cache, s.limiter,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil checker", func() {
		_, err := New(nil, s.cache, s.limiter)
		s.ErrorContains(err, "account checker is required")
	})
	s.Run("nil cache", func() {
		_, err := New(s.checker, nil, s.limiter)
		s.ErrorContains(err, "validation cache is required")
	})
	s.Run("nil limiter", func() {
		_, err := New(s.checker, s.cache, nil)
		s.ErrorContains(err, "rate limiter is required")
	})
	s.Run("default network is test", func() {
		svc, err := New(s.checker, s.cache, s.limiter)
		s.Require().NoError(err)
		s.Equal(ledger.NetworkTest, svc.DefaultNetwork())
	})
}

func (s *ServiceSuite) TestValidateLocalChecks() {
	ctx := context.Background()

	s.Run("invalid address on public network", func() {
		result, err := s.service.Validate(ctx, "INVALID_ADDRESS", ledger.NetworkPublic, false)
		s.Require().NoError(err)
		s.False(result.IsValid)
		s.False(result.IsFormatValid)
		s.Equal(ErrInvalidFormat, result.Error)
		s.Nil(result.AccountExists)
	})

	s.Run("corrupted checksum keeps format valid", func() {
		addr := corruptLastChar(keypair.MustRandom().Address())
		result, err := s.service.Validate(ctx, addr, ledger.NetworkTest, true)
		s.Require().NoError(err)
		s.True(result.IsFormatValid)
		s.False(result.IsChecksumValid)
		s.False(result.IsValid)
		s.Equal(ErrInvalidChecksum, result.Error)
	})

	s.Run("empty network falls back to default", func() {
		addr := keypair.MustRandom().Address()
		result, err := s.service.Validate(ctx, addr, "", false)
		s.Require().NoError(err)
		s.Equal(ledger.NetworkTest, result.Network)
		s.True(result.IsValid)
	})
}

func (s *ServiceSuite) TestValidateExistence() {
	ctx := context.Background()

	s.Run("existing account is reported with details", func() {
		addr := keypair.MustRandom().Address()
		details := &ledger.AccountDetails{AccountID: addr, Sequence: 42}
		s.limiter.EXPECT().TryAcquire().Return(true)
		s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkPublic).
			Return(ledger.AccountStatus{Exists: true, Details: details}, nil)

		result, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
		s.Require().NoError(err)
		s.True(result.IsValid)
		s.Require().NotNil(result.AccountExists)
		s.True(*result.AccountExists)
		s.Equal(details, result.AccountDetails)
	})

	s.Run("missing account still validates", func() {
		addr := keypair.MustRandom().Address()
		s.limiter.EXPECT().TryAcquire().Return(true)
		s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkTest).
			Return(ledger.AccountStatus{Exists: false}, nil)

		result, err := s.service.Validate(ctx, addr, ledger.NetworkTest, true)
		s.Require().NoError(err)
		s.True(result.IsValid)
		s.Require().NotNil(result.AccountExists)
		s.False(*result.AccountExists)
		s.Nil(result.AccountDetails)
	})

	s.Run("invalid address never reaches the ledger", func() {
		result, err := s.service.Validate(ctx, "INVALID_ADDRESS", ledger.NetworkTest, true)
		s.Require().NoError(err)
		s.False(result.IsValid)
		s.Nil(result.AccountExists)
	})
}

func (s *ServiceSuite) TestValidateDegradesWithoutFailing() {
	ctx := context.Background()

	s.Run("rate limited check leaves existence unknown and is not cached", func() {
		addr := keypair.MustRandom().Address()
		s.limiter.EXPECT().TryAcquire().Return(false).Times(2)

		for range 2 {
			result, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
			s.Require().NoError(err)
			s.True(result.IsValid)
			s.Nil(result.AccountExists)
			s.Equal(NoteRateLimited, result.Note)
		}
		s.Equal(float64(2), testutil.ToFloat64(s.metrics.ExistenceChecks.WithLabelValues("rate_limited")))
	})

	s.Run("ledger outage leaves existence unknown", func() {
		addr := keypair.MustRandom().Address()
		s.limiter.EXPECT().TryAcquire().Return(true)
		s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkPublic).
			Return(ledger.AccountStatus{}, ledger.NewError(ledger.CategoryTimeout, "account", "deadline exceeded", context.DeadlineExceeded))

		result, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
		s.Require().NoError(err)
		s.True(result.IsValid)
		s.Nil(result.AccountExists)
		s.Equal(NoteUnavailable, result.Note)
		s.Equal(0, s.cache.Len())
	})
}

func (s *ServiceSuite) TestValidateIsIdempotentThroughCache() {
	ctx := context.Background()
	addr := keypair.MustRandom().Address()
	s.limiter.EXPECT().TryAcquire().Return(true).Times(1)
	s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkPublic).
		Return(ledger.AccountStatus{Exists: true, Details: &ledger.AccountDetails{AccountID: addr}}, nil).
		Times(1)

	first, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)
	second, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
}

func (s *ServiceSuite) TestCachedResultIsolatedFromCallers() {
	ctx := context.Background()
	addr := keypair.MustRandom().Address()
	s.limiter.EXPECT().TryAcquire().Return(true).Times(1)
	s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkPublic).
		Return(ledger.AccountStatus{Exists: true, Details: &ledger.AccountDetails{
			AccountID: addr,
			Balances:  []ledger.Balance{{AssetType: "native", Balance: "100.0000000"}},
		}}, nil).
		Times(1)

	first, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)
	first.AccountDetails.Balances[0].Balance = "0"
	first.AccountDetails.Sequence = 99
	*first.AccountExists = false

	second, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)
	s.True(*second.AccountExists)
	s.Equal(int64(0), second.AccountDetails.Sequence)
	s.Equal("100.0000000", second.AccountDetails.Balances[0].Balance)

	second.AccountDetails.Balances[0].Balance = "1"
	third, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)
	s.Equal("100.0000000", third.AccountDetails.Balances[0].Balance)
}

func (s *ServiceSuite) TestCacheKeyIncludesCheckExists() {
	ctx := context.Background()
	addr := keypair.MustRandom().Address()

	_, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, false)
	s.Require().NoError(err)

	s.limiter.EXPECT().TryAcquire().Return(true)
	s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkPublic).
		Return(ledger.AccountStatus{Exists: true}, nil)
	result, err := s.service.Validate(ctx, addr, ledger.NetworkPublic, true)
	s.Require().NoError(err)
	s.Require().NotNil(result.AccountExists)
	s.Equal(2, s.cache.Len())
}

func (s *ServiceSuite) TestStaleEntryTriggersFreshLookup() {
	ctx := context.Background()
	addr := keypair.MustRandom().Address()
	s.limiter.EXPECT().TryAcquire().Return(true).Times(2)
	s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkTest).
		Return(ledger.AccountStatus{Exists: false}, nil)
	s.checker.EXPECT().AccountExists(gomock.Any(), addr, ledger.NetworkTest).
		Return(ledger.AccountStatus{Exists: true}, nil)

	first, err := s.service.Validate(ctx, addr, ledger.NetworkTest, true)
	s.Require().NoError(err)
	s.False(*first.AccountExists)

	s.advance(5*time.Minute + time.Second)

	second, err := s.service.Validate(ctx, addr, ledger.NetworkTest, true)
	s.Require().NoError(err)
	s.True(*second.AccountExists)
}

func (s *ServiceSuite) TestValidateBulk() {
	ctx := context.Background()

	s.Run("counts and order", func() {
		addrs := []string{
			keypair.MustRandom().Address(),
			"INVALID_ADDRESS",
			keypair.MustRandom().Address(),
			corruptLastChar(keypair.MustRandom().Address()),
		}
		out, err := s.service.ValidateBulk(ctx, addrs, ledger.NetworkPublic, false)
		s.Require().NoError(err)
		s.Equal(4, out.Total)
		s.Equal(2, out.Valid)
		s.Equal(2, out.Invalid)
		s.Require().Len(out.Results, 4)
		for i, r := range out.Results {
			s.Equal(addrs[i], r.Address)
		}
		s.True(out.Results[0].IsValid)
		s.False(out.Results[1].IsValid)
		s.Equal(ErrInvalidChecksum, out.Results[3].Error)
	})

	s.Run("empty input", func() {
		_, err := s.service.ValidateBulk(ctx, nil, ledger.NetworkPublic, false)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("too many addresses", func() {
		addrs := make([]string, MaxBulkAddresses+1)
		for i := range addrs {
			addrs[i] = fmt.Sprintf("ADDR%d", i)
		}
		_, err := s.service.ValidateBulk(ctx, addrs, ledger.NetworkPublic, false)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestClearCacheAndStats() {
	ctx := context.Background()
	for range 3 {
		_, err := s.service.Validate(ctx, keypair.MustRandom().Address(), ledger.NetworkPublic, false)
		s.Require().NoError(err)
	}

	stats := s.service.CacheStats()
	s.Equal(3, stats.Size)
	s.Equal(int64(300000), stats.TTL)
	s.Equal(1000, stats.MaxSize)

	s.service.ClearCache(ctx)
	s.Equal(0, s.service.CacheStats().Size)
}

func (s *ServiceSuite) TestClearCacheEmitsAudit() {
	events := memory.NewInMemoryStore()
	svc, err := New(s.checker, s.cache, s.limiter, WithAuditPublisher(audit.NewPublisher(events)))
	s.Require().NoError(err)

	ctx := requestcontext.WithSubject(context.Background(), "ops")
	svc.ClearCache(ctx)

	all, err := events.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(audit.ActionAddressCacheCleared, all[0].Action)
	s.Equal("ops", all[0].ActorID)
}
