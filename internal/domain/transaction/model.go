package transaction

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// Transaction represents a money transfer between two accounts as known locally
type Transaction struct {
	ID                  int64           `json:"id"`
	SendingAccountID    int64           `json:"sendingAccountId"`
	ReceivingAccountID  int64           `json:"receivingAccountId"`
	Amount              decimal.Decimal `json:"amount"`
	Comment             string          `json:"comment,omitempty"`
	SenderPhoneNumber   string          `json:"senderPhoneNumber,omitempty"`
	ReceiverPhoneNumber string          `json:"receiverPhoneNumber,omitempty"`
	TransactionTime     int64           `json:"transactionTime"`
}

// IsIncomingFor reports whether accountID received the money.
func (t Transaction) IsIncomingFor(accountID int64) bool {
	return t.ReceivingAccountID == accountID
}

// IsOutgoingFor reports whether accountID sent the money.
func (t Transaction) IsOutgoingFor(accountID int64) bool {
	return t.SendingAccountID == accountID
}

// Validate checks the invariants a record must hold before it is stored
func (t Transaction) Validate() error {
	if t.ID <= 0 {
		return errors.NewValidationError("transaction id must be positive").WithDetail("id", t.ID)
	}
	if !t.Amount.IsPositive() {
		return errors.NewValidationError("transaction amount must be positive").
			WithDetail("id", t.ID).
			WithDetail("amount", t.Amount.String())
	}
	return nil
}

// SortByTimeDesc orders records newest first, ties broken by id descending.
func SortByTimeDesc(records []Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].TransactionTime != records[j].TransactionTime {
			return records[i].TransactionTime > records[j].TransactionTime
		}
		return records[i].ID > records[j].ID
	})
}

// Dedupe collapses records sharing an id, keeping the last occurrence.
func Dedupe(records []Transaction) []Transaction {
	index := make(map[int64]int, len(records))
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
