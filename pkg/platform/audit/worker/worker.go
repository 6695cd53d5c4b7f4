// Package worker drains the in-process audit channel into the durable store.
package worker

import (
	"context"

	audit "custodia/pkg/platform/audit"
)

// Worker moves buffered audit events into the store. It decouples the
// request path from storage latency: services publish to the channel and
// return, the worker persists in the background.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run appends events until the context is canceled, then flushes whatever
// the channel still buffers. The trail is a compliance artifact; a shutdown
// must not discard events that services already consider published.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(ctx)
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case event := <-w.inbox:
			// Best effort: the store is going away with the process anyway.
			_ = w.store.Append(ctx, event)
		default:
			return
		}
	}
}
