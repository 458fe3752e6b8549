// Package stats computes cached certificate and verification statistics.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"certledger/internal/certificate/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

const (
	trendWindow    = 30 * 24 * time.Hour
	weekWindow     = 7 * 24 * time.Hour
	topIssuerLimit = 5
)

type CertificateCounter interface {
	Count(ctx context.Context, filter models.CertificateFilter) (int, error)
	CountIssuedByDay(ctx context.Context, since time.Time, filter models.CertificateFilter) ([]models.DailyCount, error)
	TopIssuers(ctx context.Context, filter models.CertificateFilter, limit int) ([]models.IssuerCount, error)
}

type VerificationCounter interface {
	Count(ctx context.Context, filter models.VerificationFilter) (int, error)
}

// SnapshotCache stores combined snapshots. A miss is (nil, false, nil).
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*Snapshot, bool, error)
	Set(ctx context.Context, key string, snapshot *Snapshot) error
}

// Aggregator answers statistics queries from the stores behind a snapshot cache.
type Aggregator struct {
	certificates  CertificateCounter
	verifications VerificationCounter
	cache         SnapshotCache
	logger        *slog.Logger
	tracer        trace.Tracer
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func New(certificates CertificateCounter, verifications VerificationCounter, cache SnapshotCache, opts ...Option) (*Aggregator, error) {
	if certificates == nil {
		return nil, errors.New("certificate counter is required")
	}
	if verifications == nil {
		return nil, errors.New("verification counter is required")
	}
	if cache == nil {
		return nil, errors.New("snapshot cache is required")
	}
	a := &Aggregator{
		certificates:  certificates,
		verifications: verifications,
		cache:         cache,
		tracer:        otel.Tracer("certledger/stats"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Snapshot returns the cached snapshot for q or computes one. Sub-queries run
// concurrently and only a complete result is cached. Cache faults degrade
// to a fresh computation.
func (a *Aggregator) Snapshot(ctx context.Context, q Query) (*Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	key := q.CacheKey()

	ctx, span := a.tracer.Start(ctx, "stats.Snapshot", trace.WithAttributes(attribute.String("stats.key", key)))
	defer span.End()

	cached, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "stats cache read failed",
			"key", key,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else if ok {
		span.SetAttributes(attribute.Bool("stats.cache_hit", true))
		return cached, nil
	}

	snapshot, err := a.compute(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute statistics")
	}

	if err := a.cache.Set(ctx, key, snapshot); err != nil {
		a.logger.WarnContext(ctx, "stats cache write failed",
			"key", key,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return snapshot, nil
}

func (a *Aggregator) compute(ctx context.Context, q Query) (*Snapshot, error) {
	now := requestcontext.Now(ctx).UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trendSince := now.Add(-trendWindow)
	weekAgo := now.Add(-weekWindow)
	revoked, active := true, false
	succeeded, failed := true, false

	base := q.filter()
	withRevoked := func(v *bool) models.CertificateFilter {
		f := base
		f.Revoked = v
		return f
	}
	expiredFilter := base
	expiredFilter.ExpiredAt = &now
	trendFilter := models.CertificateFilter{IssuerName: q.IssuerName}

	s := &Snapshot{GeneratedAt: now}
	vs := &s.VerificationStats

	g, gctx := errgroup.WithContext(ctx)
	countCerts := func(dst *int, f models.CertificateFilter) {
		g.Go(func() error {
			n, err := a.certificates.Count(gctx, f)
			*dst = n
			return err
		})
	}
	countVerifications := func(dst *int, f models.VerificationFilter) {
		g.Go(func() error {
			n, err := a.verifications.Count(gctx, f)
			*dst = n
			return err
		})
	}

	countCerts(&s.TotalCertificates, base)
	countCerts(&s.ActiveCertificates, withRevoked(&active))
	countCerts(&s.RevokedCertificates, withRevoked(&revoked))
	countCerts(&s.ExpiredCertificates, expiredFilter)
	g.Go(func() error {
		trend, err := a.certificates.CountIssuedByDay(gctx, trendSince, trendFilter)
		s.IssuanceTrend = trend
		return err
	})
	g.Go(func() error {
		top, err := a.certificates.TopIssuers(gctx, base, topIssuerLimit)
		s.TopIssuers = top
		return err
	})
	countVerifications(&vs.TotalVerifications, models.VerificationFilter{})
	countVerifications(&vs.SuccessfulVerifications, models.VerificationFilter{Success: &succeeded})
	countVerifications(&vs.FailedVerifications, models.VerificationFilter{Success: &failed})
	countVerifications(&vs.DailyVerifications, models.VerificationFilter{Since: &startOfDay})
	countVerifications(&vs.WeeklyVerifications, models.VerificationFilter{Since: &weekAgo})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if s.IssuanceTrend == nil {
		s.IssuanceTrend = []models.DailyCount{}
	}
	if s.TopIssuers == nil {
		s.TopIssuers = []models.IssuerCount{}
	}
	return s, nil
}
