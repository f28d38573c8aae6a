package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// SessionRepository implements account.Repository on SQLite. The session is
// a single row, its pending deltas are kept in submission order.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save replaces the stored session
func (r *SessionRepository) Save(ctx context.Context, st account.State) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session (id, account_id, phone_number, balance, logged_in_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			phone_number = excluded.phone_number,
			balance = excluded.balance,
			logged_in_at = excluded.logged_in_at
	`, st.Account.ID, st.Account.PhoneNumber, st.Account.Balance.String(), st.Account.LoggedInAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.NewPersistenceError("failed to save session", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_deltas`); err != nil {
		return errors.NewPersistenceError("failed to clear pending transfers", err)
	}
	for _, d := range st.Pending {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_deltas (id, amount, transaction_id, receiver_phone_number, baseline, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.ID, d.Amount.String(), d.TransactionID, d.ReceiverPhoneNumber, d.Baseline, d.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return errors.NewPersistenceError("failed to save pending transfer", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceError("failed to commit session", err)
	}
	return nil
}

// Load returns the stored session, if any
func (r *SessionRepository) Load(ctx context.Context) (account.State, bool, error) {
	var st account.State
	var balance, loggedInAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, phone_number, balance, logged_in_at FROM session WHERE id = 1
	`).Scan(&st.Account.ID, &st.Account.PhoneNumber, &balance, &loggedInAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return account.State{}, false, nil
	}
	if err != nil {
		return account.State{}, false, errors.NewPersistenceError("failed to load session", err)
	}
	if st.Account.Balance, err = decimal.NewFromString(balance); err != nil {
		return account.State{}, false, errors.NewPersistenceError("invalid stored balance", err)
	}
	if st.Account.LoggedInAt, err = time.Parse(time.RFC3339Nano, loggedInAt); err != nil {
		return account.State{}, false, errors.NewPersistenceError("invalid stored login time", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, transaction_id, receiver_phone_number, baseline, created_at
		FROM pending_deltas ORDER BY seq
	`)
	if err != nil {
		return account.State{}, false, errors.NewPersistenceError("failed to load pending transfers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d account.PendingDelta
		var amount, createdAt string
		if err := rows.Scan(&d.ID, &amount, &d.TransactionID, &d.ReceiverPhoneNumber, &d.Baseline, &createdAt); err != nil {
			return account.State{}, false, errors.NewPersistenceError("failed to scan pending transfer", err)
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return account.State{}, false, errors.NewPersistenceError("invalid stored pending amount", err)
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return account.State{}, false, errors.NewPersistenceError("invalid stored pending time", err)
		}
		st.Pending = append(st.Pending, d)
	}
	if err := rows.Err(); err != nil {
		return account.State{}, false, errors.NewPersistenceError("failed to read pending transfers", err)
	}
	return st, true, nil
}

// Delete removes the stored session and its pending transfers
func (r *SessionRepository) Delete(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM pending_deltas`, `DELETE FROM session`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.NewPersistenceError("failed to delete session", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceError("failed to commit session delete", err)
	}
	return nil
}
