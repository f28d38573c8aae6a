package account

import (
	"context"
)

// Repository defines the interface for persisting the session across restarts
type Repository interface {
	// Save replaces the stored session state
	Save(ctx context.Context, state State) error

	// Load returns the stored state, or found=false when nobody is logged in
	Load(ctx context.Context) (state State, found bool, err error)

	// Delete removes the stored state
	Delete(ctx context.Context) error
}
