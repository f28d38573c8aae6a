// Package remote talks to the banking API that owns accounts and transactions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/domain/transfer"
)

// maximum error body read when building an error message
const maxErrorBody = 4096

// TransactionDTO is the wire format of a transaction
type TransactionDTO struct {
	ID                  int64           `json:"id"`
	SendingAccountID    int64           `json:"sendingAccountId"`
	ReceivingAccountID  int64           `json:"receivingAccountId"`
	Amount              decimal.Decimal `json:"amount"`
	Comment             string          `json:"comment"`
	SenderPhoneNumber   string          `json:"senderPhoneNumber"`
	ReceiverPhoneNumber string          `json:"receiverPhoneNumber"`
	TransactionTime     int64           `json:"transactionTime"`
}

func (d TransactionDTO) toTransaction() transaction.Transaction {
	return transaction.Transaction{
		ID:                  d.ID,
		SendingAccountID:    d.SendingAccountID,
		ReceivingAccountID:  d.ReceivingAccountID,
		Amount:              d.Amount,
		Comment:             d.Comment,
		SenderPhoneNumber:   d.SenderPhoneNumber,
		ReceiverPhoneNumber: d.ReceiverPhoneNumber,
		TransactionTime:     d.TransactionTime,
	}
}

type errorBody struct {
	Message string `json:"message"`
}

// Client calls the banking API
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *zap.Logger
}

// NewClient creates a new API client. A nil httpClient gets one with timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.NewValidationError("invalid API base URL").WithDetail("baseUrl", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		logger:     logger.Named("remote"),
	}, nil
}

// FetchTransactions returns the authoritative transaction list of an account
func (c *Client) FetchTransactions(ctx context.Context, accountID int64) ([]transaction.Transaction, error) {
	endpoint := c.baseURL.JoinPath("transactions", strconv.FormatInt(accountID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errors.NewRemoteFetchError(0, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, errors.NewRemoteFetchError(0, "transaction request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewRemoteFetchError(resp.StatusCode, errorMessage(resp), nil)
	}

	var dtos []TransactionDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, errors.NewRemoteFetchError(0, "failed to decode transactions", err)
	}

	out := make([]transaction.Transaction, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toTransaction())
	}
	return out, nil
}

// TransferMoney submits a transfer with the caller's bearer token
func (c *Client) TransferMoney(ctx context.Context, r transfer.TransferRequest) (transfer.Receipt, error) {
	if r.Token == "" {
		return transfer.Receipt{}, errors.NewAuthMissingError("no access token for transfer")
	}

	body, err := json.Marshal(r)
	if err != nil {
		return transfer.Receipt{}, errors.NewRemoteTransferError(0, "failed to encode transfer", err)
	}

	endpoint := c.baseURL.JoinPath("transfer")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return transfer.Receipt{}, errors.NewRemoteTransferError(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.Token)

	resp, err := c.do(req)
	if err != nil {
		return transfer.Receipt{}, errors.NewRemoteTransferError(0, "transfer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transfer.Receipt{}, errors.NewRemoteTransferError(resp.StatusCode, errorMessage(resp), nil)
	}

	var receipt transfer.Receipt
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transfer.Receipt{}, errors.NewRemoteTransferError(resp.StatusCode, "failed to read transfer response", err)
	}
	// an empty or non-JSON success body still means the transfer was accepted
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &receipt); err != nil {
			c.logger.Warn("unrecognized transfer response", zap.Error(err))
			receipt = transfer.Receipt{}
		}
	}
	return receipt, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	c.logger.Debug("request completed", append(fields, zap.Int("status_code", resp.StatusCode))...)
	return resp, nil
}

func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return fmt.Sprintf("unexpected status %d", resp.StatusCode)
}
