package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	id "persona-gateway/pkg/domain"
	"persona-gateway/pkg/requestcontext"
)

// Sink receives a copy of every event after it is persisted. Delivery is
// best effort; a sink failure never fails the emitting operation.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	sinks []Sink
	log   *slog.Logger
}

func NewPublisher(store Store, log *slog.Logger, sinks ...Sink) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{store: store, sinks: sinks, log: log}
}

// Emit stamps and persists the event, then fans it out to the sinks. The
// event ID, timestamp, and request ID are filled from context when absent.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.log.WarnContext(ctx, "audit sink publish failed",
				slog.String("action", event.Action),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, account id.AccountID) ([]Event, error) {
	return p.store.ListByAccount(ctx, account)
}
