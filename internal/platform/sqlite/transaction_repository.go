package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository on SQLite
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const upsertTransaction = `
	INSERT INTO transactions (
		id, sending_account_id, receiving_account_id, amount, comment,
		sender_phone_number, receiver_phone_number, transaction_time
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sending_account_id = excluded.sending_account_id,
		receiving_account_id = excluded.receiving_account_id,
		amount = excluded.amount,
		comment = excluded.comment,
		sender_phone_number = excluded.sender_phone_number,
		receiver_phone_number = excluded.receiver_phone_number,
		transaction_time = excluded.transaction_time
`

// UpsertAll writes records in one SQL transaction
func (r *TransactionRepository) UpsertAll(ctx context.Context, records []transaction.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertTransaction)
	if err != nil {
		return errors.NewPersistenceError("failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, t := range records {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.SendingAccountID, t.ReceivingAccountID, t.Amount.String(), t.Comment,
			t.SenderPhoneNumber, t.ReceiverPhoneNumber, t.TransactionTime,
		); err != nil {
			return errors.NewPersistenceError(fmt.Sprintf("failed to upsert transaction %d", t.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceError("failed to commit transactions", err)
	}
	return nil
}

// ListAll returns every record, newest first
func (r *TransactionRepository) ListAll(ctx context.Context) ([]transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sending_account_id, receiving_account_id, amount, comment,
			sender_phone_number, receiver_phone_number, transaction_time
		FROM transactions
		ORDER BY transaction_time DESC, id DESC
	`)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to query transactions", err)
	}
	defer rows.Close()

	var out []transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		var amount string
		if err := rows.Scan(
			&t.ID, &t.SendingAccountID, &t.ReceivingAccountID, &amount, &t.Comment,
			&t.SenderPhoneNumber, &t.ReceiverPhoneNumber, &t.TransactionTime,
		); err != nil {
			return nil, errors.NewPersistenceError("failed to scan transaction", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.NewPersistenceError(fmt.Sprintf("invalid amount for transaction %d", t.ID), err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("failed to read transactions", err)
	}
	return out, nil
}

// Reset deletes every record
func (r *TransactionRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return errors.NewPersistenceError("failed to delete transactions", err)
	}
	return nil
}
