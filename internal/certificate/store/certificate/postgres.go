package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"certledger/internal/certificate/models"
	"certledger/internal/platform/postgres"
	"certledger/pkg/platform/sentinel"
)

// PostgresStore persists certificates. The UNIQUE constraint on
// certificate_id is what rejects duplicate issuance.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certificateColumns = `id, certificate_id, title, description, issuer_name, recipient_email,
	recipient_public_key, blockchain_tx_hash, issued_at, expires_at, is_revoked`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cert.ID,
		cert.CertificateID,
		cert.Title,
		cert.Description,
		cert.IssuerName,
		cert.RecipientEmail,
		cert.RecipientPublicKey,
		cert.BlockchainTxHash,
		cert.IssuedAt,
		cert.ExpiresAt,
		cert.IsRevoked,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("certificate %q: %w", cert.CertificateID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	return scanCertificate(row)
}

// FindBySerial prefers a certificate_id match over a tx hash match.
func (s *PostgresStore) FindBySerial(ctx context.Context, serial string) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates
		WHERE certificate_id = $1 OR (blockchain_tx_hash <> '' AND blockchain_tx_hash = $1)
		ORDER BY (certificate_id = $1) DESC
		LIMIT 1`, serial)
	return scanCertificate(row)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+certificateColumns+` FROM certificates ORDER BY issued_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, filter models.CertificateFilter) (int, error) {
	where, args := certificateWhere(filter, 1)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountIssuedByDay(ctx context.Context, since time.Time, filter models.CertificateFilter) ([]models.DailyCount, error) {
	where, args := certificateWhere(filter, 2)
	if where == "" {
		where = " WHERE issued_at >= $1"
	} else {
		where += " AND issued_at >= $1"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', issued_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM certificates`+where+`
		GROUP BY day
		ORDER BY day ASC`, append([]any{since}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("issuance trend: %w", err)
	}
	defer rows.Close()

	out := []models.DailyCount{}
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan issuance trend: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TopIssuers(ctx context.Context, filter models.CertificateFilter, limit int) ([]models.IssuerCount, error) {
	where, args := certificateWhere(filter, 2)
	rows, err := s.db.QueryContext(ctx, `
		SELECT issuer_name, COUNT(*) AS n
		FROM certificates`+where+`
		GROUP BY issuer_name
		ORDER BY n DESC, issuer_name ASC
		LIMIT $1`, append([]any{limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("top issuers: %w", err)
	}
	defer rows.Close()

	out := []models.IssuerCount{}
	for rows.Next() {
		var ic models.IssuerCount
		if err := rows.Scan(&ic.IssuerName, &ic.CertificateCount); err != nil {
			return nil, fmt.Errorf("scan top issuers: %w", err)
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

// certificateWhere renders filter as a WHERE clause with placeholders
// numbered from first.
func certificateWhere(f models.CertificateFilter, first int) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, first+len(args)-1))
	}
	if f.IssuedFrom != nil {
		add("issued_at >= $%d", *f.IssuedFrom)
	}
	if f.IssuedTo != nil {
		add("issued_at <= $%d", *f.IssuedTo)
	}
	if f.IssuerName != "" {
		add("issuer_name = $%d", f.IssuerName)
	}
	if f.Revoked != nil {
		add("is_revoked = $%d", *f.Revoked)
	}
	if f.ExpiredAt != nil {
		add("expires_at < $%d", *f.ExpiredAt)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert      models.Certificate
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&cert.ID,
		&cert.CertificateID,
		&cert.Title,
		&cert.Description,
		&cert.IssuerName,
		&cert.RecipientEmail,
		&cert.RecipientPublicKey,
		&cert.BlockchainTxHash,
		&cert.IssuedAt,
		&expiresAt,
		&cert.IsRevoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		cert.ExpiresAt = &t
	}
	return &cert, nil
}
