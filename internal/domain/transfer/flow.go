package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/event"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// Session is the part of the account session a transfer updates
type Session interface {
	AccountID() (int64, bool)
	Balance() decimal.Decimal
	ApplyTransfer(ctx context.Context, t account.Transfer, current []transaction.Transaction) (account.PendingDelta, error)
}

// Records provides the cached transactions
type Records interface {
	QueryAll() []transaction.Transaction
}

// Refresher reloads the account's transactions after a transfer
type Refresher interface {
	Refresh(ctx context.Context, accountID int64) (int, error)
}

// Publisher publishes domain events
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// Dependencies of a Flow
type Dependencies struct {
	Session    Session
	Records    Records
	Transferer Transferer
	Tokens     TokenProvider
	Refresher  Refresher
	Publisher  Publisher
	Logger     *zap.Logger
}

// Flow drives the repeat-transfer interaction. Only one transfer is in flight
// at a time and a failed transfer is never retried automatically.
type Flow struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	draft         Draft
	last          *Outcome
	onStateChange func(from, to State)
}

// NewFlow creates a new transfer flow
func NewFlow(deps Dependencies) *Flow {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		deps:   deps,
		logger: logger.Named("transfer"),
		now:    time.Now,
	}
}

// OnStateChange registers a hook called after every state transition
func (f *Flow) OnStateChange(fn func(from, to State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onStateChange = fn
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Draft returns the draft awaiting confirmation
func (f *Flow) Draft() (Draft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft, f.state == Confirming || f.state == Submitting
}

// LastOutcome returns the outcome of the last successful transfer
func (f *Flow) LastOutcome() (Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Outcome{}, false
	}
	return *f.last, true
}

// RequestRepeat prepares a transfer that repeats an outgoing transaction of
// the logged-in account and waits for confirmation.
func (f *Flow) RequestRepeat(t transaction.Transaction) (Draft, error) {
	accountID, ok := f.deps.Session.AccountID()
	if !ok {
		return Draft{}, errors.NewValidationError("no account is logged in")
	}
	if !t.IsOutgoingFor(accountID) {
		return Draft{}, errors.NewValidationError("only outgoing transactions can be repeated").
			WithDetail("transactionId", t.ID)
	}
	draft := DraftFrom(t)
	if err := draft.Validate(); err != nil {
		return Draft{}, err
	}

	f.mu.Lock()
	if f.state != Idle {
		state := f.state
		f.mu.Unlock()
		return Draft{}, errors.NewConflictError("a transfer is already in progress").
			WithDetail("state", state.String())
	}
	f.draft = draft
	hook := f.transitionLocked(Confirming)
	f.mu.Unlock()
	hook()

	f.logger.Info("transfer requested",
		zap.Int64("transaction_id", t.ID),
		zap.String("amount", draft.Amount.String()))
	return draft, nil
}

// Cancel abandons a draft awaiting confirmation
func (f *Flow) Cancel() error {
	f.mu.Lock()
	if f.state != Confirming {
		state := f.state
		f.mu.Unlock()
		return errors.NewConflictError("no transfer is awaiting confirmation").
			WithDetail("state", state.String())
	}
	f.draft = Draft{}
	hook := f.transitionLocked(Idle)
	f.mu.Unlock()
	hook()
	return nil
}

// Confirm submits the pending draft. On success the balance is lowered, a
// TransferCompleted event is published and the transactions are refreshed,
// in that order. On failure nothing local changes.
func (f *Flow) Confirm(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if f.state != Confirming {
		state := f.state
		f.mu.Unlock()
		return Outcome{}, errors.NewConflictError("no transfer is awaiting confirmation").
			WithDetail("state", state.String())
	}
	draft := f.draft
	hook := f.transitionLocked(Submitting)
	f.mu.Unlock()
	hook()

	receipt, err := f.submit(ctx, draft)
	if err != nil {
		f.logger.Warn("transfer failed", zap.Error(err))
		f.finish(Failed, nil)
		return Outcome{}, err
	}

	outcome := f.complete(ctx, draft, receipt)
	f.finish(Succeeded, &outcome)
	return outcome, nil
}

// ConfirmAsync runs Confirm in the background and delivers its result on the
// returned channel, which is closed afterwards.
func (f *Flow) ConfirmAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		outcome, err := f.Confirm(ctx)
		ch <- Result{Outcome: outcome, Err: err}
	}()
	return ch
}

func (f *Flow) submit(ctx context.Context, draft Draft) (Receipt, error) {
	token, ok, err := f.deps.Tokens.Token(ctx)
	if err != nil {
		if errors.HasCode(err, errors.CodeAuthMissing) {
			return Receipt{}, err
		}
		return Receipt{}, errors.NewRemoteTransferError(0, "failed to read access token", err)
	}
	if !ok || token == "" {
		return Receipt{}, errors.NewAuthMissingError("no access token stored")
	}

	receipt, err := f.deps.Transferer.TransferMoney(ctx, TransferRequest{
		SenderPhoneNumber:   draft.FromPhoneNumber,
		SenderAccountID:     draft.FromAccountID,
		ReceiverPhoneNumber: draft.ToPhoneNumber,
		Amount:              draft.Amount,
		Comment:             draft.Comment,
		Token:               token,
	})
	if err != nil {
		if appErr, ok := errors.As(err); ok && (appErr.Code == errors.CodeRemoteTransfer || appErr.Code == errors.CodeAuthMissing) {
			return Receipt{}, err
		}
		return Receipt{}, errors.NewRemoteTransferError(0, "transfer request failed", err)
	}
	return receipt, nil
}

func (f *Flow) complete(ctx context.Context, draft Draft, receipt Receipt) Outcome {
	outcome := Outcome{Draft: draft, Receipt: receipt, At: f.now().UTC()}
	logger := f.logger.With(
		zap.Int64("account_id", draft.FromAccountID),
		zap.Int64("transaction_id", receipt.TransactionID))

	var current []transaction.Transaction
	if f.deps.Records != nil {
		current = f.deps.Records.QueryAll()
	}
	if _, err := f.deps.Session.ApplyTransfer(ctx, account.Transfer{
		Amount:              draft.Amount,
		ReceiverPhoneNumber: draft.ToPhoneNumber,
		TransactionID:       receipt.TransactionID,
	}, current); err != nil {
		logger.Error("failed to record transfer in balance", zap.Error(err))
		outcome.BalanceErr = err
	}
	outcome.Balance = f.deps.Session.Balance()

	if f.deps.Publisher != nil {
		f.deps.Publisher.Publish(ctx, event.TransferCompleted{
			ID:            event.NewID(),
			FromAccountID: draft.FromAccountID,
			ToPhoneNumber: draft.ToPhoneNumber,
			Amount:        draft.Amount,
			Comment:       draft.Comment,
			TransactionID: receipt.TransactionID,
			Message:       receipt.Message,
			At:            outcome.At,
		})
	}

	if f.deps.Refresher != nil {
		if _, err := f.deps.Refresher.Refresh(ctx, draft.FromAccountID); err != nil {
			logger.Warn("refresh after transfer failed", zap.Error(err))
			outcome.RefreshErr = err
		}
	}

	logger.Info("transfer completed", zap.String("balance", outcome.Balance.String()))
	return outcome
}

// finish records the terminal state and returns to Idle.
func (f *Flow) finish(terminal State, outcome *Outcome) {
	f.mu.Lock()
	if outcome != nil {
		f.last = outcome
	}
	f.draft = Draft{}
	first := f.transitionLocked(terminal)
	second := f.transitionLocked(Idle)
	f.mu.Unlock()
	first()
	second()
}

// transitionLocked must be called with mu held. The returned func runs the
// state change hook and must be called after mu is released.
func (f *Flow) transitionLocked(to State) func() {
	from := f.state
	f.state = to
	hook := f.onStateChange
	if hook == nil {
		return func() {}
	}
	return func() { hook(from, to) }
}
