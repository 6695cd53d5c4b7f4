package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	auditmem "custodia/pkg/platform/audit/store/memory"
)

func TestWorker_DrainsChannelIntoStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := auditmem.NewInMemoryStore()
	inbox := publisher.NewChannel(8)
	w := NewWorker(store, inbox.Events())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	account, err := id.ParseAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, inbox.Emit(ctx, audit.Event{
			Timestamp: time.Now(),
			Actor:     account,
			Action:    string(audit.EventTransfer),
			From:      account,
		}))
	}

	require.Eventually(t, func() bool {
		events, err := store.ListByAccount(ctx, account)
		return err == nil && len(events) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorker_FlushesBufferedEventsOnShutdown(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	inbox := publisher.NewChannel(8)
	w := NewWorker(store, inbox.Events())

	account, err := id.ParseAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)

	// Events published before the worker ever gets scheduled must survive a
	// shutdown that arrives immediately.
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, inbox.Emit(ctx, audit.Event{
			Timestamp: time.Now(),
			Actor:     account,
			Action:    string(audit.EventMint),
			To:        account,
		}))
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, w.Run(canceled), context.Canceled)

	events, err := store.ListByAccount(ctx, account)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestChannel_EmitRespectsContext(t *testing.T) {
	inbox := publisher.NewChannel(1)

	ctx := context.Background()
	require.NoError(t, inbox.Emit(ctx, audit.Event{Action: "a"}))

	// Buffer full; a canceled context unblocks the send.
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, inbox.Emit(canceled, audit.Event{Action: "b"}), context.Canceled)
}
