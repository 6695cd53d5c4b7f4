package publisher

import (
	"context"

	audit "custodia/pkg/platform/audit"
)

// StorePublisher emits events straight into an audit store. This is the
// single-process wiring; distributed deployments layer the Kafka publisher
// on top via Multi.
type StorePublisher struct {
	store audit.Store
}

func NewStorePublisher(store audit.Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

// Channel buffers events for a background worker. Emit blocks once the
// buffer is full rather than dropping: audit events must not be lost.
type Channel struct {
	ch chan audit.Event
}

func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan audit.Event, size)}
}

func (c *Channel) Emit(ctx context.Context, event audit.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.ch <- event:
		return nil
	}
}

// Events is the worker side of the channel.
func (c *Channel) Events() <-chan audit.Event {
	return c.ch
}

// Multi fans an event out to every sink in order, stopping at the first
// failure so the durable sink (listed first) decides the call's fate.
type Multi struct {
	sinks []audit.Publisher
}

func NewMulti(sinks ...audit.Publisher) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Emit(ctx context.Context, event audit.Event) error {
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
