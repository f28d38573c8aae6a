package memory

import (
	"context"
	"sync"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// TransactionRepository keeps transactions in process memory
type TransactionRepository struct {
	mu   sync.RWMutex
	rows map[int64]transaction.Transaction
}

// NewTransactionRepository creates an empty repository
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{rows: make(map[int64]transaction.Transaction)}
}

func (r *TransactionRepository) UpsertAll(ctx context.Context, records []transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.rows[rec.ID] = rec
	}
	return nil
}

func (r *TransactionRepository) ListAll(ctx context.Context) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]transaction.Transaction, 0, len(r.rows))
	for _, rec := range r.rows {
		out = append(out, rec)
	}
	transaction.SortByTimeDesc(out)
	return out, nil
}

func (r *TransactionRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make(map[int64]transaction.Transaction)
	return nil
}

// SessionRepository keeps the session state in process memory
type SessionRepository struct {
	mu    sync.Mutex
	state *account.State
}

// NewSessionRepository creates an empty repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) Save(ctx context.Context, st account.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.Pending = append([]account.PendingDelta(nil), st.Pending...)
	r.state = &st
	return nil
}

func (r *SessionRepository) Load(ctx context.Context) (account.State, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return account.State{}, false, nil
	}
	st := *r.state
	st.Pending = append([]account.PendingDelta(nil), st.Pending...)
	return st, true, nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = nil
	return nil
}
