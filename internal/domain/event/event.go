package event

import (
	"time"

	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Topic identifies a kind of event
type Topic string

const (
	TopicTransferCompleted Topic = "transfer.completed"
	TopicStoreChanged      Topic = "store.changed"
	TopicSyncFailed        Topic = "sync.failed"
)

// Event is anything that can be published on a Bus
type Event interface {
	Topic() Topic
	EventID() string
}

// NewID returns a new sortable event id
func NewID() string {
	return ulid.Make().String()
}

// TransferCompleted is published after a transfer was accepted by the server
// and the local balance was updated.
type TransferCompleted struct {
	ID            string
	FromAccountID int64
	ToPhoneNumber string
	Amount        decimal.Decimal
	Comment       string
	TransactionID int64
	Message       string
	At            time.Time
}

func (e TransferCompleted) Topic() Topic { return TopicTransferCompleted }
func (e TransferCompleted) EventID() string { return e.ID }

// StoreChanged is published when the transaction store commits a new snapshot
type StoreChanged struct {
	ID      string
	Version uint64
	Count   int
}

func (e StoreChanged) Topic() Topic { return TopicStoreChanged }
func (e StoreChanged) EventID() string { return e.ID }

// SyncFailed is published when a refresh could not fetch transactions
type SyncFailed struct {
	ID        string
	AccountID int64
	Err       error
	At        time.Time
}

func (e SyncFailed) Topic() Topic { return TopicSyncFailed }
func (e SyncFailed) EventID() string { return e.ID }
