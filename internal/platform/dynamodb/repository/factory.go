package repository

import (
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *zap.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *zap.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// TransactionRepository returns an implementation of the transaction.Repository interface
func (f *Factory) TransactionRepository(accounts AccountSource) transaction.Repository {
	return NewDynamoDBTransactionRepository(f.client, f.tableName, accounts, f.logger)
}

// SessionRepository returns an implementation of the account.Repository interface
func (f *Factory) SessionRepository(profile string) account.Repository {
	return NewDynamoDBSessionRepository(f.client, f.tableName, profile)
}
