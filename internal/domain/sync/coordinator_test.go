package syncer

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/event"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/platform/memory"
)

type testFetcher struct {
	calls   atomic.Int32
	records []transaction.Transaction
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *testFetcher) FetchTransactions(ctx context.Context, accountID int64) ([]transaction.Transaction, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type failingRepository struct {
	*memory.TransactionRepository
}

func (r failingRepository) UpsertAll(ctx context.Context, records []transaction.Transaction) error {
	return stderrors.New("disk full")
}

func tx(id, from, to int64, amount string, ts int64) transaction.Transaction {
	return transaction.Transaction{
		ID:                  id,
		SendingAccountID:    from,
		ReceivingAccountID:  to,
		Amount:              decimal.RequireFromString(amount),
		ReceiverPhoneNumber: "+200",
		TransactionTime:     ts,
	}
}

func newStore() *transaction.Store {
	return transaction.NewStore(memory.NewTransactionRepository(), nil)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("stores fetched records", func(t *testing.T) {
		store := newStore()
		fetcher := &testFetcher{records: []transaction.Transaction{tx(1, 5, 9, "10", 100), tx(2, 9, 5, "20", 200)}}
		c := NewCoordinator(fetcher, store, nil, nil, nil)

		n, err := c.Refresh(ctx, 5)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("unauthorized fetch leaves the store untouched", func(t *testing.T) {
		store := newStore()
		require.NoError(t, store.UpsertAll(ctx, []transaction.Transaction{tx(1, 5, 9, "10", 100)}))
		before := store.Snapshot()

		bus := event.NewBus(nil)
		var failed []event.SyncFailed
		bus.Subscribe(event.TopicSyncFailed, func(ctx context.Context, e event.Event) {
			failed = append(failed, e.(event.SyncFailed))
		})

		fetcher := &testFetcher{err: errors.NewRemoteFetchError(401, "unauthorized", nil)}
		c := NewCoordinator(fetcher, store, nil, bus, nil)

		_, err := c.Refresh(ctx, 5)

		require.Error(t, err)
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeRemoteFetch, appErr.Code)
		assert.Equal(t, 401, appErr.StatusCode)
		assert.Equal(t, before.Version(), store.Snapshot().Version())
		assert.Equal(t, before.Records(), store.QueryAll())
		require.Len(t, failed, 1)
		assert.Equal(t, int64(5), failed[0].AccountID)
	})

	t.Run("transport errors become remote fetch errors", func(t *testing.T) {
		c := NewCoordinator(&testFetcher{err: stderrors.New("connection reset")}, newStore(), nil, nil, nil)

		_, err := c.Refresh(ctx, 5)

		assert.True(t, stderrors.Is(err, errors.ErrRemoteFetch))
	})

	t.Run("invalid remote records become remote fetch errors", func(t *testing.T) {
		store := newStore()
		bus := event.NewBus(nil)
		var failed []event.SyncFailed
		bus.Subscribe(event.TopicSyncFailed, func(ctx context.Context, e event.Event) {
			failed = append(failed, e.(event.SyncFailed))
		})
		fetcher := &testFetcher{records: []transaction.Transaction{tx(1, 5, 9, "10", 100), tx(2, 5, 9, "0", 200)}}
		c := NewCoordinator(fetcher, store, nil, bus, nil)

		n, err := c.Refresh(ctx, 5)

		assert.Equal(t, 0, n)
		assert.True(t, errors.HasCode(err, errors.CodeRemoteFetch))
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, int64(2), appErr.Details["transactionId"])
		assert.Equal(t, 0, store.Len())
		require.Len(t, failed, 1)
	})

	t.Run("persistence errors are returned as is", func(t *testing.T) {
		store := transaction.NewStore(failingRepository{memory.NewTransactionRepository()}, nil)
		c := NewCoordinator(&testFetcher{records: []transaction.Transaction{tx(1, 5, 9, "10", 100)}}, store, nil, nil, nil)

		_, err := c.Refresh(ctx, 5)

		assert.True(t, stderrors.Is(err, errors.ErrPersistence))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("rejects invalid account ids", func(t *testing.T) {
		c := NewCoordinator(&testFetcher{}, newStore(), nil, nil, nil)
		_, err := c.Refresh(ctx, 0)
		assert.True(t, errors.HasCode(err, errors.CodeValidation))
	})
}

func TestRefreshReconcilesPendingTransfers(t *testing.T) {
	ctx := context.Background()
	session := account.NewSession(memory.NewSessionRepository(), nil)
	require.NoError(t, session.Login(ctx, account.Account{ID: 5, Balance: decimal.NewFromInt(100)}))
	_, err := session.ApplyTransfer(ctx, account.Transfer{
		Amount:              decimal.NewFromInt(15),
		ReceiverPhoneNumber: "+200",
		TransactionID:       3,
	}, nil)
	require.NoError(t, err)

	fetcher := &testFetcher{records: []transaction.Transaction{tx(3, 5, 9, "15", 300)}}
	c := NewCoordinator(fetcher, newStore(), session, nil, nil)

	_, err = c.Refresh(ctx, 5)

	require.NoError(t, err)
	assert.Empty(t, session.Pending())
	assert.Equal(t, "85", session.Balance().String())
}

func TestRefreshDeduplicatesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	fetcher := &testFetcher{
		records: []transaction.Transaction{tx(1, 5, 9, "10", 100)},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	c := NewCoordinator(fetcher, newStore(), nil, nil, nil)

	var wg sync.WaitGroup
	results := make([]int, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Refresh(ctx, 5)
	}()
	<-fetcher.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = c.Refresh(ctx, 5)
	}()
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, []int{1, 1}, results)
}

func TestRefreshSurvivesCancelledSharer(t *testing.T) {
	fetcher := &testFetcher{
		records: []transaction.Transaction{tx(1, 5, 9, "10", 100)},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	store := newStore()
	c := NewCoordinator(fetcher, store, nil, nil, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(firstCtx, 5)
		firstErr <- err
	}()
	<-fetcher.started

	type result struct {
		n   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		n, err := c.Refresh(context.Background(), 5)
		second <- result{n, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(fetcher.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, 1, res.n)
	case <-time.After(time.Second):
		t.Fatal("refresh did not complete")
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestRefreshAsync(t *testing.T) {
	fetcher := &testFetcher{records: []transaction.Transaction{tx(1, 5, 9, "10", 100)}}
	c := NewCoordinator(fetcher, newStore(), nil, nil, nil)

	select {
	case res := <-c.RefreshAsync(context.Background(), 5):
		require.NoError(t, res.Err)
		assert.Equal(t, 1, res.Count)
		assert.Equal(t, int64(5), res.AccountID)
	case <-time.After(time.Second):
		t.Fatal("refresh did not complete")
	}
}
