package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/api/middleware"
	"github.com/hirosato/pocketbank/backend/internal/api/response"
	"github.com/hirosato/pocketbank/backend/internal/domain/transfer"
)

type outcomeResponse struct {
	TransactionID int64           `json:"transactionId,omitempty"`
	Message       string          `json:"message,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	BalanceError  string          `json:"balanceError,omitempty"`
	RefreshError  string          `json:"refreshError,omitempty"`
	At            time.Time       `json:"at"`
}

type transferResponse struct {
	State   string           `json:"state"`
	Draft   *transfer.Draft  `json:"draft,omitempty"`
	Outcome *outcomeResponse `json:"lastOutcome,omitempty"`
}

func newOutcomeResponse(o transfer.Outcome) *outcomeResponse {
	out := &outcomeResponse{
		TransactionID: o.Receipt.TransactionID,
		Message:       o.Receipt.Message,
		Balance:       o.Balance,
		At:            o.At,
	}
	if o.BalanceErr != nil {
		out.BalanceError = o.BalanceErr.Error()
	}
	if o.RefreshErr != nil {
		out.RefreshError = o.RefreshErr.Error()
	}
	return out
}

// GetTransfer handles GET /transfer
func (s *Server) GetTransfer(w http.ResponseWriter, r *http.Request) {
	resp := transferResponse{State: s.deps.Transfers.State().String()}
	if draft, ok := s.deps.Transfers.Draft(); ok {
		resp.Draft = &draft
	}
	if outcome, ok := s.deps.Transfers.LastOutcome(); ok {
		resp.Outcome = newOutcomeResponse(outcome)
	}
	response.OK(w, resp, middleware.RequestIDFrom(r.Context()))
}

// ConfirmTransfer handles POST /transfer/confirm
func (s *Server) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.deps.Transfers.Confirm(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response.OK(w, transferResponse{
		State:   s.deps.Transfers.State().String(),
		Draft:   &outcome.Draft,
		Outcome: newOutcomeResponse(outcome),
	}, middleware.RequestIDFrom(r.Context()))
}

// CancelTransfer handles POST /transfer/cancel
func (s *Server) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transfers.Cancel(); err != nil {
		s.fail(w, r, err)
		return
	}
	response.OK(w, transferResponse{State: s.deps.Transfers.State().String()}, middleware.RequestIDFrom(r.Context()))
}
