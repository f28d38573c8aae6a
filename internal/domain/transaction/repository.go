package transaction

import (
	"context"
)

// Repository defines the interface for the durable transaction collection
type Repository interface {
	// Insert or replace records by id. A failed call must leave the collection unchanged.
	UpsertAll(ctx context.Context, records []Transaction) error

	// Full scan sorted by TransactionTime descending
	ListAll(ctx context.Context) ([]Transaction, error)

	// Remove every record
	Reset(ctx context.Context) error
}
