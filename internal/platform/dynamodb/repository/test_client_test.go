package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TestClient is an in-memory implementation of the DynamoDB client interface for testing
type TestClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// pageSize limits Query results to exercise pagination when > 0
	pageSize int
	// unprocessedCalls makes the next BatchWriteItem calls leave their last request unprocessed
	unprocessedCalls int
	batchErr         error
	batchCalls       int
}

// NewTestClient creates a new test client with an empty items map
func NewTestClient() *TestClient {
	return &TestClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, "PK") + "|" + stringAttr(item, "SK")
}

// GetItem retrieves an item from the in-memory store
func (c *TestClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, exists := c.items[itemKey(params.Key)]; exists {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

// PutItem adds or replaces an item in the in-memory store
func (c *TestClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem removes an item from the in-memory store
func (c *TestClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query matches items whose PK equals one expression value and whose SK
// starts with another, in key order.
func (c *TestClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var values []string
	for _, v := range params.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			values = append(values, s.Value)
		}
	}

	var keys []string
	for key, item := range c.items {
		pk, sk := stringAttr(item, "PK"), stringAttr(item, "SK")
		pkMatch, skMatch := false, false
		for _, v := range values {
			if v == pk {
				pkMatch = true
			} else if strings.HasPrefix(sk, v) {
				skMatch = true
			}
		}
		if pkMatch && skMatch {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if params.ExclusiveStartKey != nil {
		start := itemKey(params.ExclusiveStartKey)
		i := sort.SearchStrings(keys, start)
		if i < len(keys) && keys[i] == start {
			i++
		}
		keys = keys[i:]
	}

	out := &dynamodb.QueryOutput{}
	if c.pageSize > 0 && len(keys) > c.pageSize {
		keys = keys[:c.pageSize]
		last := c.items[keys[len(keys)-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	for _, key := range keys {
		out.Items = append(out.Items, c.items[key])
	}
	return out, nil
}

// BatchWriteItem applies puts and deletes to the in-memory store
func (c *TestClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batchCalls++
	if c.batchErr != nil {
		return nil, c.batchErr
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range params.RequestItems {
		if c.unprocessedCalls > 0 && len(requests) > 0 {
			c.unprocessedCalls--
			out.UnprocessedItems[table] = requests[len(requests)-1:]
			requests = requests[:len(requests)-1]
		}
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				c.items[itemKey(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(c.items, itemKey(req.DeleteRequest.Key))
			}
		}
	}
	return out, nil
}
