package verification

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"certledger/internal/certificate/models"
)

// InMemory is an append-only verification log.
type InMemory struct {
	mu      sync.RWMutex
	records []models.Verification
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *v)
	return nil
}

func (s *InMemory) Count(_ context.Context, filter models.VerificationFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			n++
		}
	}
	return n, nil
}

// ListByCertificate returns the attempts for one certificate in insertion order.
func (s *InMemory) ListByCertificate(_ context.Context, certificateID uuid.UUID) ([]models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Verification
	for _, r := range s.records {
		if r.CertificateID == certificateID {
			out = append(out, r)
		}
	}
	return out, nil
}
