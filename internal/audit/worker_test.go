package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-gateway/pkg/requestcontext"
)

func TestQueueStampsAtEnqueueTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-7")

	inbox := make(chan Event, 1)
	queue := NewQueue(inbox)

	require.NoError(t, queue.Emit(ctx, Event{Account: account, Action: ActionRewardPurchased}))

	got := <-inbox
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "req-7", got.RequestID)
}

func TestQueueDropsWhenFull(t *testing.T) {
	inbox := make(chan Event, 1)
	queue := NewQueue(inbox)

	require.NoError(t, queue.Emit(context.Background(), Event{Account: account, Action: ActionRewardCreated}))
	assert.Error(t, queue.Emit(context.Background(), Event{Account: account, Action: ActionRewardCreated}))
}

func TestWorkerEmitsFromInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 4)
	worker := NewWorker(NewPublisher(store, nil), inbox)

	inbox <- Event{Account: account, Action: ActionRewardCreated}
	inbox <- Event{Account: account, Action: ActionRewardPurchased}
	close(inbox)

	require.NoError(t, worker.Run(context.Background()))

	events, err := store.ListByAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorkerDrainsInboxOnShutdown(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 4)
	worker := NewWorker(NewPublisher(store, nil), inbox)

	// Buffer events, then cancel before the worker ever runs. Run must still
	// flush the accepted events before returning.
	inbox <- Event{Account: account, Action: ActionVerificationRecorded}
	inbox <- Event{Account: account, Action: ActionScoreMarkedStale}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := worker.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	events, listErr := store.ListByAccount(context.Background(), account)
	require.NoError(t, listErr)
	assert.Len(t, events, 2)
}

func TestWorkerStopsWhenStoreFails(t *testing.T) {
	inbox := make(chan Event, 1)
	worker := NewWorker(NewPublisher(failingStore{}, nil), inbox)

	inbox <- Event{Account: account, Action: ActionRewardDeleted}

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on store failure")
	}
}
