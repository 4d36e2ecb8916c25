package worker

import (
	"context"
	"log/slog"

	audit "hearth/pkg/platform/audit"
)

// Sink receives every audit event the worker drains.
type Sink interface {
	Append(ctx context.Context, event audit.Event) error
}

// Worker consumes audit events from a channel and fans them out to every
// sink. A sink failure is logged and does not stop delivery to the others;
// the audit trail degrades rather than blocking the claim flow.
type Worker struct {
	sinks  []Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(inbox <-chan audit.Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{sinks: sinks, inbox: inbox, logger: logger}
}

// Run delivers events until the context is cancelled, then drains whatever
// is already buffered in the inbox before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event audit.Event) {
	for _, sink := range w.sinks {
		if err := sink.Append(ctx, event); err != nil {
			w.logger.Error("audit sink append failed",
				"action", event.Action,
				"error", err)
		}
	}
}
