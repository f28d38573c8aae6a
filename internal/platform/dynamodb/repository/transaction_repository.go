package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonErrors "github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/platform/dynamodb/client"
)

const (
	// BatchWriteItem accepts at most 25 requests
	maxBatchSize    = 25
	maxBatchRetries = 3
)

// AccountSource reports which account owns the cached rows
type AccountSource interface {
	AccountID() (int64, bool)
}

// DynamoDBTransactionRepository implements the transaction.Repository interface.
// Rows of one account share the partition ACCOUNT#<id>.
type DynamoDBTransactionRepository struct {
	client   client.Client
	table    string
	accounts AccountSource
	logger   *zap.Logger
}

// NewDynamoDBTransactionRepository creates a new DynamoDBTransactionRepository
func NewDynamoDBTransactionRepository(client client.Client, table string, accounts AccountSource, logger *zap.Logger) *DynamoDBTransactionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoDBTransactionRepository{
		client:   client,
		table:    table,
		accounts: accounts,
		logger:   logger.Named("transaction_repository"),
	}
}

type transactionItem struct {
	PK                  string `dynamodbav:"PK"`
	SK                  string `dynamodbav:"SK"`
	Type                string `dynamodbav:"Type"`
	ID                  int64  `dynamodbav:"id"`
	SendingAccountID    int64  `dynamodbav:"sendingAccountId"`
	ReceivingAccountID  int64  `dynamodbav:"receivingAccountId"`
	Amount              string `dynamodbav:"amount"`
	Comment             string `dynamodbav:"comment"`
	SenderPhoneNumber   string `dynamodbav:"senderPhoneNumber"`
	ReceiverPhoneNumber string `dynamodbav:"receiverPhoneNumber"`
	TransactionTime     int64  `dynamodbav:"transactionTime"`
}

func accountPK(accountID int64) string {
	return fmt.Sprintf("ACCOUNT#%d", accountID)
}

// zero padding keeps the sort key order equal to the id order
func transactionSK(id int64) string {
	return fmt.Sprintf("TRANSACTION#%020d", id)
}

func toItem(owner int64, t transaction.Transaction) transactionItem {
	return transactionItem{
		PK:                  accountPK(owner),
		SK:                  transactionSK(t.ID),
		Type:                "transaction",
		ID:                  t.ID,
		SendingAccountID:    t.SendingAccountID,
		ReceivingAccountID:  t.ReceivingAccountID,
		Amount:              t.Amount.String(),
		Comment:             t.Comment,
		SenderPhoneNumber:   t.SenderPhoneNumber,
		ReceiverPhoneNumber: t.ReceiverPhoneNumber,
		TransactionTime:     t.TransactionTime,
	}
}

func (i transactionItem) toTransaction() (transaction.Transaction, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("invalid amount %q for transaction %d: %w", i.Amount, i.ID, err)
	}
	return transaction.Transaction{
		ID:                  i.ID,
		SendingAccountID:    i.SendingAccountID,
		ReceivingAccountID:  i.ReceivingAccountID,
		Amount:              amount,
		Comment:             i.Comment,
		SenderPhoneNumber:   i.SenderPhoneNumber,
		ReceiverPhoneNumber: i.ReceiverPhoneNumber,
		TransactionTime:     i.TransactionTime,
	}, nil
}

func (r *DynamoDBTransactionRepository) owner() (int64, error) {
	id, ok := r.accounts.AccountID()
	if !ok {
		return 0, commonErrors.NewValidationError("no account is logged in")
	}
	return id, nil
}

// UpsertAll writes records with BatchWriteItem in chunks of 25. Puts replace
// existing items, so replays are idempotent. Items still unprocessed after
// the retries fail the call.
func (r *DynamoDBTransactionRepository) UpsertAll(ctx context.Context, records []transaction.Transaction) error {
	owner, err := r.owner()
	if err != nil {
		return err
	}

	requests := make([]types.WriteRequest, 0, len(records))
	for _, rec := range records {
		item, err := attributevalue.MarshalMap(toItem(owner, rec))
		if err != nil {
			return commonErrors.NewInternalError("failed to marshal transaction", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	if err := r.batchWrite(ctx, requests); err != nil {
		return err
	}
	r.logger.Debug("transactions written", zap.Int64("account_id", owner), zap.Int("count", len(records)))
	return nil
}

// ListAll queries the account partition and sorts by time, newest first
func (r *DynamoDBTransactionRepository) ListAll(ctx context.Context) ([]transaction.Transaction, error) {
	owner, err := r.owner()
	if err != nil {
		return nil, err
	}

	items, err := r.queryPartition(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]transaction.Transaction, 0, len(items))
	for _, item := range items {
		t, err := item.toTransaction()
		if err != nil {
			return nil, commonErrors.NewPersistenceError("failed to decode transaction", err)
		}
		out = append(out, t)
	}
	transaction.SortByTimeDesc(out)
	return out, nil
}

// Reset deletes every transaction of the account
func (r *DynamoDBTransactionRepository) Reset(ctx context.Context) error {
	owner, err := r.owner()
	if err != nil {
		return err
	}

	items, err := r.queryPartition(ctx, owner)
	if err != nil {
		return err
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: item.PK},
				"SK": &types.AttributeValueMemberS{Value: item.SK},
			},
		}})
	}
	if err := r.batchWrite(ctx, requests); err != nil {
		return err
	}
	r.logger.Info("transactions deleted", zap.Int64("account_id", owner), zap.Int("count", len(items)))
	return nil
}

func (r *DynamoDBTransactionRepository) queryPartition(ctx context.Context, owner int64) ([]transactionItem, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(accountPK(owner))).
		And(expression.Key("SK").BeginsWith("TRANSACTION#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	var items []transactionItem
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, commonErrors.NewPersistenceError("failed to query transactions", err)
		}

		var page []transactionItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, commonErrors.NewPersistenceError("failed to unmarshal transactions", err)
		}
		items = append(items, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}
}

func (r *DynamoDBTransactionRepository) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(requests) {
			end = len(requests)
		}

		pending := map[string][]types.WriteRequest{r.table: requests[start:end]}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxBatchRetries {
				return commonErrors.NewPersistenceError("unprocessed items remained after retries", nil).
					WithDetail("unprocessed", len(pending[r.table]))
			}
			result, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return commonErrors.NewPersistenceError("failed to write batch", err)
			}
			pending = result.UnprocessedItems
		}
	}
	return nil
}
