package syncer

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/event"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// Fetcher retrieves the authoritative transaction list for an account
type Fetcher interface {
	FetchTransactions(ctx context.Context, accountID int64) ([]transaction.Transaction, error)
}

// Store is the part of the transaction store a refresh writes to
type Store interface {
	UpsertAll(ctx context.Context, records []transaction.Transaction) error
	QueryAll() []transaction.Transaction
}

// Reconciler clears optimistic balance changes confirmed by fetched records
type Reconciler interface {
	Reconcile(ctx context.Context, records []transaction.Transaction) (int, error)
}

// Publisher publishes domain events
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// RefreshResult is delivered by RefreshAsync
type RefreshResult struct {
	AccountID int64
	Count     int
	Err       error
}

// Coordinator refreshes the local cache from the remote service
type Coordinator struct {
	fetcher    Fetcher
	store      Store
	reconciler Reconciler
	publisher  Publisher
	logger     *zap.Logger
	group      singleflight.Group
}

// NewCoordinator creates a new sync coordinator. reconciler and publisher may be nil.
func NewCoordinator(fetcher Fetcher, store Store, reconciler Reconciler, publisher Publisher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		fetcher:    fetcher,
		store:      store,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.Named("sync"),
	}
}

// Refresh fetches the account's transactions and merges them into the store.
// Concurrent refreshes of the same account share one fetch. The shared fetch
// does not inherit a caller's cancellation; a cancelled caller stops waiting
// and gets ctx.Err() while the others still receive the result. On a fetch
// error the store is left untouched.
func (c *Coordinator) Refresh(ctx context.Context, accountID int64) (int, error) {
	if accountID <= 0 {
		return 0, errors.NewValidationError("account id must be positive")
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatInt(accountID, 10), func() (interface{}, error) {
		return c.refresh(detached, accountID)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("refresh abandoned by caller",
			zap.Int64("account_id", accountID), zap.Error(ctx.Err()))
		return 0, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("refresh shared with in-flight call", zap.Int64("account_id", accountID))
		}
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// RefreshAsync runs Refresh in the background and delivers its result on the
// returned channel, which is closed afterwards.
func (c *Coordinator) RefreshAsync(ctx context.Context, accountID int64) <-chan RefreshResult {
	ch := make(chan RefreshResult, 1)
	go func() {
		defer close(ch)
		n, err := c.Refresh(ctx, accountID)
		ch <- RefreshResult{AccountID: accountID, Count: n, Err: err}
	}()
	return ch
}

func (c *Coordinator) refresh(ctx context.Context, accountID int64) (int, error) {
	start := time.Now()
	logger := c.logger.With(zap.Int64("account_id", accountID))

	records, err := c.fetcher.FetchTransactions(ctx, accountID)
	if err != nil {
		err = asRemoteFetch(err)
		logger.Warn("failed to fetch transactions", zap.Error(err))
		c.publishFailure(ctx, accountID, err)
		return 0, err
	}

	for _, record := range records {
		if err := record.Validate(); err != nil {
			fetchErr := errors.NewRemoteFetchError(0, "invalid transaction from remote", err).
				WithDetail("transactionId", record.ID)
			logger.Warn("remote returned an invalid transaction",
				zap.Int64("transaction_id", record.ID), zap.Error(err))
			c.publishFailure(ctx, accountID, fetchErr)
			return 0, fetchErr
		}
	}

	if err := c.store.UpsertAll(ctx, records); err != nil {
		logger.Error("failed to store fetched transactions", zap.Error(err))
		return 0, err
	}

	if c.reconciler != nil {
		if _, err := c.reconciler.Reconcile(ctx, c.store.QueryAll()); err != nil {
			// the records are stored; pending deltas are retried on the next refresh
			logger.Warn("failed to reconcile pending transfers", zap.Error(err))
		}
	}

	logger.Info("transactions refreshed",
		zap.Int("count", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return len(records), nil
}

func (c *Coordinator) publishFailure(ctx context.Context, accountID int64, err error) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(ctx, event.SyncFailed{
		ID:        event.NewID(),
		AccountID: accountID,
		Err:       err,
		At:        time.Now().UTC(),
	})
}

func asRemoteFetch(err error) error {
	if appErr, ok := errors.As(err); ok {
		switch appErr.Code {
		case errors.CodeRemoteFetch, errors.CodeAuthMissing, errors.CodeValidation:
			return err
		}
	}
	return errors.NewRemoteFetchError(0, "failed to fetch transactions", err)
}
