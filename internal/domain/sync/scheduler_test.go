package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

type staticAccount struct {
	id int64
	ok bool
}

func (a staticAccount) AccountID() (int64, bool) { return a.id, a.ok }

func TestSchedulerTick(t *testing.T) {
	ctx := context.Background()

	t.Run("skips without a session", func(t *testing.T) {
		fetcher := &testFetcher{}
		s := NewScheduler(NewCoordinator(fetcher, newStore(), nil, nil, nil), staticAccount{}, nil)

		s.Tick(ctx)

		assert.Equal(t, int32(0), fetcher.calls.Load())
	})

	t.Run("refreshes the session account", func(t *testing.T) {
		fetcher := &testFetcher{records: []transaction.Transaction{tx(1, 5, 9, "10", 100)}}
		store := newStore()
		s := NewScheduler(NewCoordinator(fetcher, store, nil, nil, nil), staticAccount{id: 5, ok: true}, nil)

		s.Tick(ctx)

		assert.Equal(t, 1, store.Len())
	})
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	fetcher := &testFetcher{}
	s := NewScheduler(NewCoordinator(fetcher, newStore(), nil, nil, nil), staticAccount{id: 5, ok: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
