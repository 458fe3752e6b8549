package certificate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

// InMemory is a certificate store for development and tests. Create enforces
// certificateId uniqueness under the write lock.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.Certificate
	byCert map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[uuid.UUID]*models.Certificate),
		byCert: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCert[cert.CertificateID]; taken {
		return fmt.Errorf("certificate %q: %w", cert.CertificateID, sentinel.ErrConflict)
	}
	stored := *cert
	s.byID[cert.ID] = &stored
	s.byCert[cert.CertificateID] = cert.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *cert
	return &out, nil
}

// FindBySerial matches serial against certificateId first, then tx hash.
func (s *InMemory) FindBySerial(_ context.Context, serial string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byCert[serial]; ok {
		out := *s.byID[id]
		return &out, nil
	}
	for _, cert := range s.byID {
		if cert.BlockchainTxHash != "" && cert.BlockchainTxHash == serial {
			out := *cert
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListAll returns every certificate, newest first.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Certificate, 0, len(s.byID))
	for _, cert := range s.byID {
		c := *cert
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (s *InMemory) Count(_ context.Context, filter models.CertificateFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, cert := range s.byID {
		if filter.Matches(cert) {
			n++
		}
	}
	return n, nil
}

// CountIssuedByDay buckets certificates issued at or after since by UTC day,
// oldest first. Days without issuance are omitted.
func (s *InMemory) CountIssuedByDay(_ context.Context, since time.Time, filter models.CertificateFilter) ([]models.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buckets := make(map[string]int)
	for _, cert := range s.byID {
		if cert.IssuedAt.Before(since) || !filter.Matches(cert) {
			continue
		}
		buckets[cert.IssuedAt.UTC().Format(time.DateOnly)]++
	}
	out := make([]models.DailyCount, 0, len(buckets))
	for day, n := range buckets {
		out = append(out, models.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// TopIssuers ranks issuers by certificate count, ties broken by name.
func (s *InMemory) TopIssuers(_ context.Context, filter models.CertificateFilter, limit int) ([]models.IssuerCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, cert := range s.byID {
		if filter.Matches(cert) {
			counts[cert.IssuerName]++
		}
	}
	out := make([]models.IssuerCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.IssuerCount{IssuerName: name, CertificateCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CertificateCount != out[j].CertificateCount {
			return out[i].CertificateCount > out[j].CertificateCount
		}
		return out[i].IssuerName < out[j].IssuerName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
