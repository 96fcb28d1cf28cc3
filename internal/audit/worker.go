package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"persona-gateway/pkg/requestcontext"
)

// Queue implements the services' Emit seam by handing events to a Worker's
// inbox. Stamping happens at enqueue time: by the time the worker picks the
// event up, the request context and its values are gone.
type Queue struct {
	inbox chan<- Event
}

func NewQueue(inbox chan<- Event) *Queue {
	return &Queue{inbox: inbox}
}

func (q *Queue) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case q.inbox <- event:
		return nil
	default:
		return fmt.Errorf("audit queue full, dropping %s", event.Action)
	}
}

// Worker consumes audit events from a channel and hands them to the
// publisher. It decouples emitting from request latency for callers that
// prefer fire-and-forget; on shutdown the inbox is drained before returning.
type Worker struct {
	publisher *Publisher
	inbox     <-chan Event
}

func NewWorker(publisher *Publisher, inbox <-chan Event) *Worker {
	return &Worker{publisher: publisher, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.publisher.Emit(context.WithoutCancel(ctx), event); err != nil {
				return err
			}
		}
	}
}

// drain empties whatever is still buffered in the inbox. Emission uses a
// background context so shutdown does not discard events already accepted.
func (w *Worker) drain() {
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			_ = w.publisher.Emit(context.Background(), event)
		default:
			return
		}
	}
}
