//go:build integration

package certificate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/certificate/models"
	"certledger/internal/certificate/store/certificate"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *certificate.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = certificate.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
}

func newCert(certID, issuer, hash string, issuedAt time.Time) *models.Certificate {
	return &models.Certificate{
		ID:               uuid.New(),
		CertificateID:    certID,
		Title:            "Title",
		IssuerName:       issuer,
		RecipientEmail:   "r@example.com",
		BlockchainTxHash: hash,
		IssuedAt:         issuedAt.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindBySerial() {
	ctx := context.Background()
	cert := newCert("PG-1", "Uni", "hash-pg-1", time.Now())
	s.Require().NoError(s.store.Create(ctx, cert))

	byID, err := s.store.FindBySerial(ctx, "PG-1")
	s.Require().NoError(err)
	s.Equal(cert.ID, byID.ID)

	byHash, err := s.store.FindBySerial(ctx, "hash-pg-1")
	s.Require().NoError(err)
	s.Equal(cert.ID, byHash.ID)

	_, err = s.store.FindBySerial(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentDuplicates() {
	ctx := context.Background()
	const writers = 10
	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newCert("PG-DUP", "Uni", uuid.NewString(), time.Now()))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestAggregates() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.store.Create(ctx, newCert("PG-A", "Uni", "", now.Add(-time.Hour))))
	s.Require().NoError(s.store.Create(ctx, newCert("PG-B", "Uni", "", now.Add(-50*time.Hour))))
	s.Require().NoError(s.store.Create(ctx, newCert("PG-C", "Academy", "", now.Add(-60*24*time.Hour))))

	total, err := s.store.Count(ctx, models.CertificateFilter{})
	s.Require().NoError(err)
	s.Equal(3, total)

	trend, err := s.store.CountIssuedByDay(ctx, now.Add(-30*24*time.Hour), models.CertificateFilter{})
	s.Require().NoError(err)
	sum := 0
	for _, d := range trend {
		sum += d.Count
	}
	s.Equal(2, sum)

	top, err := s.store.TopIssuers(ctx, models.CertificateFilter{}, 5)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal("Uni", top[0].IssuerName)
}
