// Package logstore writes audit events as structured log lines. It backs the
// audit trail when no event stream is configured.
package logstore

import (
	"context"
	"log/slog"

	"certledger/internal/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.logger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"subject", event.Subject,
		"actor_id", event.ActorID,
		"request_id", event.RequestID,
		"client_ip", event.ClientIP,
		"tx_hash", event.TxHash,
		"decision", event.Decision,
		"reason", event.Reason,
		"timestamp", event.Timestamp,
	)
	return nil
}
