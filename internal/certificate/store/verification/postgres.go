package verification

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"certledger/internal/certificate/models"
)

// PostgresStore appends verification attempts. Rows are never updated.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, v *models.Verification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verifications (id, certificate_id, success, verified_at) VALUES ($1, $2, $3, $4)`,
		v.ID, v.CertificateID, v.Success, v.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, filter models.VerificationFilter) (int, error) {
	var conds []string
	var args []any
	if filter.Success != nil {
		args = append(args, *filter.Success)
		conds = append(conds, fmt.Sprintf("success = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("verified_at >= $%d", len(args)))
	}
	query := `SELECT COUNT(*) FROM verifications`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count verifications: %w", err)
	}
	return n, nil
}
