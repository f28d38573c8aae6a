package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository()

	require.NoError(t, repo.UpsertAll(ctx, []transaction.Transaction{
		{ID: 1, Amount: decimal.NewFromInt(1), TransactionTime: 10},
		{ID: 2, Amount: decimal.NewFromInt(2), TransactionTime: 20},
	}))
	require.NoError(t, repo.UpsertAll(ctx, []transaction.Transaction{
		{ID: 1, Amount: decimal.NewFromInt(3), TransactionTime: 30},
	}))

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, "3", records[0].Amount.String())

	require.NoError(t, repo.Reset(ctx))
	records, err = repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	_, found, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	st := account.State{
		Account: account.Account{ID: 5, Balance: decimal.NewFromInt(100)},
		Pending: []account.PendingDelta{{ID: "a", Amount: decimal.NewFromInt(15)}},
	}
	require.NoError(t, repo.Save(ctx, st))
	st.Pending[0].ID = "mutated"

	loaded, found, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", loaded.Pending[0].ID)

	require.NoError(t, repo.Delete(ctx))
	_, found, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
