package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transfer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL+"/api/", nil, 5*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestFetchTransactions(t *testing.T) {
	t.Run("decodes the transaction list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/transactions/5", r.URL.Path)
			_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
			assert.NoError(t, err)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id": 1, "sendingAccountId": 5, "receivingAccountId": 9, "amount": 12.5, "comment": "lunch",
				 "senderPhoneNumber": "+100", "receiverPhoneNumber": "+200", "transactionTime": 100},
				{"id": 2, "sendingAccountId": 9, "receivingAccountId": 5, "amount": "20.00", "transactionTime": 200}
			]`))
		})

		records, err := c.FetchTransactions(context.Background(), 5)

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "12.5", records[0].Amount.String())
		assert.Equal(t, "lunch", records[0].Comment)
		assert.True(t, records[1].Amount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("unauthorized responses keep the status and message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "token expired"}`))
		})

		_, err := c.FetchTransactions(context.Background(), 5)

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeRemoteFetch, appErr.Code)
		assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
		assert.Equal(t, "token expired", appErr.Message)
	})

	t.Run("server errors without a body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.FetchTransactions(context.Background(), 5)

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
		assert.Equal(t, "unexpected status 502", appErr.Message)
	})

	t.Run("malformed bodies are decode errors", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not": "a list"}`))
		})

		_, err := c.FetchTransactions(context.Background(), 5)

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeRemoteFetch, appErr.Code)
		assert.Equal(t, 0, appErr.StatusCode)
		assert.Error(t, appErr.Err)
	})
}

func TestTransferMoney(t *testing.T) {
	req := transfer.TransferRequest{
		SenderPhoneNumber:   "+100",
		SenderAccountID:     5,
		ReceiverPhoneNumber: "+200",
		Amount:              decimal.RequireFromString("15"),
		Comment:             "rent",
		Token:               "secret",
	}

	t.Run("posts the transfer with the bearer token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/transfer", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "+100", body["senderPhoneNumber"])
			assert.Equal(t, float64(5), body["senderAccountId"])
			assert.Equal(t, "+200", body["receiverPhoneNumber"])
			assert.Equal(t, "15", body["amount"])
			assert.Equal(t, "rent", body["comment"])
			assert.NotContains(t, body, "Token")

			w.Write([]byte(`{"transactionId": 42, "message": "sent"}`))
		})

		receipt, err := c.TransferMoney(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, int64(42), receipt.TransactionID)
		assert.Equal(t, "sent", receipt.Message)
	})

	t.Run("empty success body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		receipt, err := c.TransferMoney(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, int64(0), receipt.TransactionID)
	})

	t.Run("rejections carry the server message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message": "insufficient funds"}`))
		})

		_, err := c.TransferMoney(context.Background(), req)

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeRemoteTransfer, appErr.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
		assert.Equal(t, "insufficient funds", appErr.Message)
	})

	t.Run("missing token makes no request", func(t *testing.T) {
		called := false
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		noToken := req
		noToken.Token = ""
		_, err := c.TransferMoney(context.Background(), noToken)

		assert.True(t, errors.HasCode(err, errors.CodeAuthMissing))
		assert.False(t, called)
	})

	t.Run("connection failures have status zero", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		c, err := NewClient(server.URL, nil, time.Second, nil)
		require.NoError(t, err)
		server.Close()

		_, err = c.TransferMoney(context.Background(), req)

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeRemoteTransfer, appErr.Code)
		assert.Equal(t, 0, appErr.StatusCode)
	})
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("not a url", nil, time.Second, nil)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}
