package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	commonErrors "github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/platform/dynamodb/client"
)

// DynamoDBSessionRepository implements the account.Repository interface.
// The session of a profile is a single item SESSION#<profile> / STATE.
type DynamoDBSessionRepository struct {
	client  client.Client
	table   string
	profile string
}

// NewDynamoDBSessionRepository creates a new DynamoDBSessionRepository
func NewDynamoDBSessionRepository(client client.Client, table, profile string) *DynamoDBSessionRepository {
	return &DynamoDBSessionRepository{
		client:  client,
		table:   table,
		profile: profile,
	}
}

type pendingItem struct {
	ID                  string    `dynamodbav:"id"`
	Amount              string    `dynamodbav:"amount"`
	TransactionID       int64     `dynamodbav:"transactionId"`
	ReceiverPhoneNumber string    `dynamodbav:"receiverPhoneNumber"`
	Baseline            int       `dynamodbav:"baseline"`
	CreatedAt           time.Time `dynamodbav:"createdAt"`
}

type sessionItem struct {
	PK          string        `dynamodbav:"PK"`
	SK          string        `dynamodbav:"SK"`
	Type        string        `dynamodbav:"Type"`
	AccountID   int64         `dynamodbav:"accountId"`
	PhoneNumber string        `dynamodbav:"phoneNumber"`
	Balance     string        `dynamodbav:"balance"`
	LoggedInAt  time.Time     `dynamodbav:"loggedInAt"`
	Pending     []pendingItem `dynamodbav:"pending"`
}

func (r *DynamoDBSessionRepository) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SESSION#%s", r.profile)},
		"SK": &types.AttributeValueMemberS{Value: "STATE"},
	}
}

// Save replaces the stored session
func (r *DynamoDBSessionRepository) Save(ctx context.Context, st account.State) error {
	item := sessionItem{
		PK:          fmt.Sprintf("SESSION#%s", r.profile),
		SK:          "STATE",
		Type:        "session",
		AccountID:   st.Account.ID,
		PhoneNumber: st.Account.PhoneNumber,
		Balance:     st.Account.Balance.String(),
		LoggedInAt:  st.Account.LoggedInAt,
		Pending:     make([]pendingItem, 0, len(st.Pending)),
	}
	for _, d := range st.Pending {
		item.Pending = append(item.Pending, pendingItem{
			ID:                  d.ID,
			Amount:              d.Amount.String(),
			TransactionID:       d.TransactionID,
			ReceiverPhoneNumber: d.ReceiverPhoneNumber,
			Baseline:            d.Baseline,
			CreatedAt:           d.CreatedAt,
		})
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal session", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	}); err != nil {
		return commonErrors.NewPersistenceError("failed to save session", err)
	}
	return nil
}

// Load returns the stored session, if any
func (r *DynamoDBSessionRepository) Load(ctx context.Context) (account.State, bool, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return account.State{}, false, commonErrors.NewPersistenceError("failed to load session", err)
	}
	if len(result.Item) == 0 {
		return account.State{}, false, nil
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return account.State{}, false, commonErrors.NewPersistenceError("failed to unmarshal session", err)
	}

	balance, err := decimal.NewFromString(item.Balance)
	if err != nil {
		return account.State{}, false, commonErrors.NewPersistenceError("invalid stored balance", err)
	}
	st := account.State{
		Account: account.Account{
			ID:          item.AccountID,
			PhoneNumber: item.PhoneNumber,
			Balance:     balance,
			LoggedInAt:  item.LoggedInAt,
		},
	}
	for _, p := range item.Pending {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return account.State{}, false, commonErrors.NewPersistenceError("invalid stored pending amount", err)
		}
		st.Pending = append(st.Pending, account.PendingDelta{
			ID:                  p.ID,
			Amount:              amount,
			TransactionID:       p.TransactionID,
			ReceiverPhoneNumber: p.ReceiverPhoneNumber,
			Baseline:            p.Baseline,
			CreatedAt:           p.CreatedAt,
		})
	}
	return st, true, nil
}

// Delete removes the stored session
func (r *DynamoDBSessionRepository) Delete(ctx context.Context) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       r.key(),
	}); err != nil {
		return commonErrors.NewPersistenceError("failed to delete session", err)
	}
	return nil
}
