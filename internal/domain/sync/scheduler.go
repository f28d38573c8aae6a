package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AccountSource reports the account of the current session
type AccountSource interface {
	AccountID() (int64, bool)
}

// Scheduler periodically refreshes the logged-in account
type Scheduler struct {
	coordinator *Coordinator
	accounts    AccountSource
	logger      *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(coordinator *Coordinator, accounts AccountSource, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		coordinator: coordinator,
		accounts:    accounts,
		logger:      logger.Named("scheduler"),
	}
}

// Run refreshes once immediately and then every interval until ctx is done.
// Ticks without a logged-in account are skipped.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.logger.Info("starting sync scheduler", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled refresh
func (s *Scheduler) Tick(ctx context.Context) {
	accountID, ok := s.accounts.AccountID()
	if !ok {
		s.logger.Debug("no session, skipping refresh")
		return
	}
	if _, err := s.coordinator.Refresh(ctx, accountID); err != nil {
		s.logger.Warn("scheduled refresh failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}
