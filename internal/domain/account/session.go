package account

import (
	"context"
	"sync"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// Resetter clears cached data owned by a session, such as the transaction store
type Resetter interface {
	Reset(ctx context.Context) error
}

// Session holds the single live account of the app and its optimistic balance.
// The displayed balance is the last server balance minus transfers that have
// not yet been confirmed by a refresh.
type Session struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	loggedIn bool
	state    State
}

// NewSession creates a new session backed by repo
func NewSession(repo Repository, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		repo:   repo,
		logger: logger.Named("session"),
		now:    time.Now,
	}
}

// Restore loads a session persisted by a previous run
func (s *Session) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, found, err := s.repo.Load(ctx)
	if err != nil {
		return false, errors.NewPersistenceError("failed to load session", err)
	}
	if !found {
		s.state = State{}
		s.loggedIn = false
		return false, nil
	}
	s.state = state
	s.loggedIn = true
	s.logger.Info("session restored",
		zap.Int64("account_id", state.Account.ID),
		zap.Int("pending", len(state.Pending)))
	return true, nil
}

// Login replaces any existing session with acc
func (s *Session) Login(ctx context.Context, acc Account) error {
	if acc.ID <= 0 {
		return errors.NewValidationError("account id must be positive")
	}
	if acc.LoggedInAt.IsZero() {
		acc.LoggedInAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := State{Account: acc}
	if err := s.repo.Save(ctx, next); err != nil {
		return errors.NewPersistenceError("failed to save session", err)
	}
	s.state = next
	s.loggedIn = true
	s.logger.Info("logged in", zap.Int64("account_id", acc.ID))
	return nil
}

// Logout resets the given caches and then tears down the session. The caches
// are reset before the lock is taken since they may read the session.
func (s *Session) Logout(ctx context.Context, caches ...Resetter) error {
	for _, c := range caches {
		if err := c.Reset(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx); err != nil {
		return errors.NewPersistenceError("failed to delete session", err)
	}
	accountID := s.state.Account.ID
	s.state = State{}
	s.loggedIn = false
	s.logger.Info("logged out", zap.Int64("account_id", accountID))
	return nil
}

// Account returns the logged-in account
func (s *Session) Account() (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Account, s.loggedIn
}

// AccountID returns the logged-in account id
func (s *Session) AccountID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Account.ID, s.loggedIn
}

// Balance returns the server balance minus pending transfers
func (s *Session) Balance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return balanceOf(s.state)
}

// Pending returns a copy of the unconfirmed transfers
func (s *Session) Pending() []PendingDelta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingDelta, len(s.state.Pending))
	copy(out, s.state.Pending)
	return out
}

// SetServerBalance replaces the authoritative balance. The value is the
// server's current balance, which already reflects every transfer it accepted,
// so pending deltas are cleared rather than subtracted again on confirmation.
func (s *Session) SetServerBalance(ctx context.Context, balance decimal.Decimal) error {
	settled := 0
	err := s.mutate(ctx, func(st *State) error {
		st.Account.Balance = balance
		settled = len(st.Pending)
		st.Pending = nil
		return nil
	})
	if err != nil {
		return err
	}
	if settled > 0 {
		s.logger.Info("pending transfers settled by server balance", zap.Int("count", settled))
	}
	return nil
}

// ApplyTransfer records an accepted outgoing transfer, lowering the balance
// immediately. current is the cached transaction set at the time of the transfer.
func (s *Session) ApplyTransfer(ctx context.Context, t Transfer, current []transaction.Transaction) (PendingDelta, error) {
	if !t.Amount.IsPositive() {
		return PendingDelta{}, errors.NewValidationError("transfer amount must be positive")
	}

	var delta PendingDelta
	err := s.mutate(ctx, func(st *State) error {
		delta = PendingDelta{
			ID:                  ulid.Make().String(),
			Amount:              t.Amount,
			TransactionID:       t.TransactionID,
			ReceiverPhoneNumber: t.ReceiverPhoneNumber,
			CreatedAt:           s.now().UTC(),
		}
		delta.Baseline = countMatches(current, st.Account.ID, delta)
		st.Pending = append(st.Pending, delta)
		return nil
	})
	if err != nil {
		return PendingDelta{}, err
	}

	s.logger.Info("transfer applied to balance",
		zap.String("delta_id", delta.ID),
		zap.String("amount", delta.Amount.String()),
		zap.String("balance", s.Balance().String()))
	return delta, nil
}

// Reconcile clears pending deltas confirmed by records. Each cleared delta is
// folded into the server balance, so Balance is unchanged by confirmation.
func (s *Session) Reconcile(ctx context.Context, records []transaction.Transaction) (int, error) {
	cleared := 0
	err := s.mutate(ctx, func(st *State) error {
		if len(st.Pending) == 0 {
			return nil
		}
		present := make(map[int64]struct{}, len(records))
		for _, r := range records {
			present[r.ID] = struct{}{}
		}

		consumed := make(map[string]int)
		kept := st.Pending[:0:0]
		for _, d := range st.Pending {
			confirmed := false
			if d.TransactionID != 0 {
				_, confirmed = present[d.TransactionID]
			} else {
				key := matchKey(d)
				if countMatches(records, st.Account.ID, d)-d.Baseline-consumed[key] >= 1 {
					consumed[key]++
					confirmed = true
				}
			}

			if confirmed {
				st.Account.Balance = st.Account.Balance.Sub(d.Amount)
				cleared++
				continue
			}
			kept = append(kept, d)
		}
		st.Pending = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		s.logger.Info("pending transfers confirmed", zap.Int("count", cleared))
	}
	return cleared, nil
}

// mutate applies fn to a copy of the state, persists it, then commits it.
func (s *Session) mutate(ctx context.Context, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loggedIn {
		return errors.NewValidationError("no account is logged in")
	}

	next := s.state
	next.Pending = append([]PendingDelta(nil), s.state.Pending...)
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.logger.Error("failed to persist session", zap.Error(err))
		return errors.NewPersistenceError("failed to save session", err)
	}
	s.state = next
	return nil
}

func balanceOf(st State) decimal.Decimal {
	balance := st.Account.Balance
	for _, d := range st.Pending {
		balance = balance.Sub(d.Amount)
	}
	return balance
}

func matchKey(d PendingDelta) string {
	return d.ReceiverPhoneNumber + "|" + d.Amount.String()
}

// countMatches counts records that look like the outgoing transfer d.
func countMatches(records []transaction.Transaction, accountID int64, d PendingDelta) int {
	n := 0
	for _, r := range records {
		if r.SendingAccountID == accountID &&
			r.ReceiverPhoneNumber == d.ReceiverPhoneNumber &&
			r.Amount.Equal(d.Amount) {
			n++
		}
	}
	return n
}
