package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
)

func TestSessionRepository(t *testing.T) {
	// Setup
	ctx := context.Background()
	client := NewTestClient()
	repo := NewFactory(client, "test-table", nil).SessionRepository("default")
	loggedIn := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	st := account.State{
		Account: account.Account{
			ID:          5,
			PhoneNumber: "+100",
			Balance:     decimal.RequireFromString("100.25"),
			LoggedInAt:  loggedIn,
		},
		Pending: []account.PendingDelta{{
			ID:                  "01HV",
			Amount:              decimal.RequireFromString("15"),
			ReceiverPhoneNumber: "+200",
			Baseline:            1,
			CreatedAt:           loggedIn.Add(time.Minute),
		}},
	}

	_, found, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	// Act
	require.NoError(t, repo.Save(ctx, st))
	loaded, found, err := repo.Load(ctx)

	// Assert
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), loaded.Account.ID)
	assert.Equal(t, "100.25", loaded.Account.Balance.String())
	assert.True(t, loaded.Account.LoggedInAt.Equal(loggedIn))
	require.Len(t, loaded.Pending, 1)
	assert.Equal(t, "01HV", loaded.Pending[0].ID)
	assert.Equal(t, 1, loaded.Pending[0].Baseline)
	assert.Equal(t, "15", loaded.Pending[0].Amount.String())

	require.NoError(t, repo.Delete(ctx))
	_, found, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionRepositoryWithSession(t *testing.T) {
	ctx := context.Background()
	client := NewTestClient()
	factory := NewFactory(client, "test-table", nil)

	session := account.NewSession(factory.SessionRepository("default"), nil)
	require.NoError(t, session.Login(ctx, account.Account{ID: 5, Balance: decimal.NewFromInt(100)}))
	_, err := session.ApplyTransfer(ctx, account.Transfer{Amount: decimal.NewFromInt(15), ReceiverPhoneNumber: "+200"}, nil)
	require.NoError(t, err)

	restored := account.NewSession(factory.SessionRepository("default"), nil)
	ok, err := restored.Restore(ctx)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "85", restored.Balance().String())

	transactions := factory.TransactionRepository(restored)
	require.NoError(t, transactions.UpsertAll(ctx, sampleTransactions(1)))
	records, err := transactions.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
