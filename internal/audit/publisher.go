package audit

import (
	"context"

	"certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/requestcontext"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills timestamp, request id, actor and client ip from ctx when the
// caller left them empty, then appends the event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Subject(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = metadata.GetClientIP(ctx)
	}
	return p.store.Append(ctx, event)
}
