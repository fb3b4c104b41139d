package audit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPublisherAndWorker(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(store, inbox, discardLogger())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	pub := NewPublisher(inbox, discardLogger())
	pub.Emit(Event{UserID: "ana", Action: ActionLoginSuccess})
	pub.Emit(Event{UserID: "ana", Action: ActionRecordRead})
	pub.Emit(Event{UserID: "bob", Action: ActionLoginFailure})

	require.Eventually(t, func() bool {
		events, err := store.ListByUser(context.Background(), "ana")
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListByUser(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, ActionLoginSuccess, events[0].Action)
	assert.Equal(t, ActionRecordRead, events[1].Action)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.NotEqual(t, events[0].ID, events[1].ID)

	cancel()
	<-done
}

func TestPublisherDropsWhenFull(t *testing.T) {
	// Inbox with no consumer: the second emit must not block.
	inbox := make(chan Event, 1)
	pub := NewPublisher(inbox, discardLogger())

	doneCh := make(chan struct{})
	go func() {
		pub.Emit(Event{Action: ActionLogout})
		pub.Emit(Event{Action: ActionLogout})
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full inbox")
	}
	assert.Len(t, inbox, 1)
}
