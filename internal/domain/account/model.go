package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents the logged-in banking account
type Account struct {
	ID          int64           `json:"id"`
	PhoneNumber string          `json:"phoneNumber"`
	Balance     decimal.Decimal `json:"balance"` // last balance reported by the server
	LoggedInAt  time.Time       `json:"loggedInAt"`
}

// PendingDelta is a confirmed outgoing transfer whose transaction has not yet
// been observed in a refresh.
type PendingDelta struct {
	ID                  string          `json:"id"`
	Amount              decimal.Decimal `json:"amount"`
	TransactionID       int64           `json:"transactionId,omitempty"` // from the transfer receipt, 0 if unknown
	ReceiverPhoneNumber string          `json:"receiverPhoneNumber"`
	// Baseline counts matching transactions already cached when the transfer
	// was applied. The delta is confirmed once more than that are observed.
	Baseline  int       `json:"baseline"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transfer describes an outgoing transfer accepted by the remote
type Transfer struct {
	Amount              decimal.Decimal
	ReceiverPhoneNumber string
	TransactionID       int64
}

// State is what the session persists across restarts
type State struct {
	Account Account        `json:"account"`
	Pending []PendingDelta `json:"pending,omitempty"`
}
