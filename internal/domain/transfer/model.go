package transfer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// State of the transfer flow
type State int

const (
	Idle State = iota
	Confirming
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Confirming:
		return "confirming"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Draft is a transfer waiting for confirmation, copied from a past outgoing transaction
type Draft struct {
	FromAccountID   int64           `json:"fromAccountId"`
	FromPhoneNumber string          `json:"fromPhoneNumber"`
	ToPhoneNumber   string          `json:"toPhoneNumber"`
	Amount          decimal.Decimal `json:"amount"`
	Comment         string          `json:"comment"`
}

// DraftFrom builds the draft that repeats t
func DraftFrom(t transaction.Transaction) Draft {
	return Draft{
		FromAccountID:   t.SendingAccountID,
		FromPhoneNumber: t.SenderPhoneNumber,
		ToPhoneNumber:   t.ReceiverPhoneNumber,
		Amount:          t.Amount,
		Comment:         t.Comment,
	}
}

// Validate checks the draft before submission
func (d Draft) Validate() error {
	if d.FromAccountID <= 0 {
		return errors.NewValidationError("sender account is required")
	}
	if d.ToPhoneNumber == "" {
		return errors.NewValidationError("receiver phone number is required")
	}
	if !d.Amount.IsPositive() {
		return errors.NewValidationError("amount must be positive").WithDetail("amount", d.Amount.String())
	}
	return nil
}

// TransferRequest is the payload sent to the remote transfer endpoint
type TransferRequest struct {
	SenderPhoneNumber   string          `json:"senderPhoneNumber"`
	SenderAccountID     int64           `json:"senderAccountId"`
	ReceiverPhoneNumber string          `json:"receiverPhoneNumber"`
	Amount              decimal.Decimal `json:"amount"`
	Comment             string          `json:"comment"`
	Token               string          `json:"-"`
}

// Receipt is the remote acknowledgement of a transfer. TransactionID is 0
// when the server did not report one.
type Receipt struct {
	TransactionID int64  `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Outcome describes a successful transfer
type Outcome struct {
	Draft   Draft
	Receipt Receipt
	// Balance after the optimistic update
	Balance decimal.Decimal
	// Set when the balance could not be recorded locally
	BalanceErr error
	// Set when the follow-up refresh failed; the transfer itself succeeded
	RefreshErr error
	At         time.Time
}

// Result is delivered by ConfirmAsync
type Result struct {
	Outcome Outcome
	Err     error
}

// Transferer submits transfers to the remote service
type Transferer interface {
	TransferMoney(ctx context.Context, req TransferRequest) (Receipt, error)
}

// TokenProvider returns the access token used for transfers. ok is false when
// no token is stored.
type TokenProvider interface {
	Token(ctx context.Context) (token string, ok bool, err error)
}
