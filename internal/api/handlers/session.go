package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/api/middleware"
	"github.com/hirosato/pocketbank/backend/internal/api/response"
	"github.com/hirosato/pocketbank/backend/internal/common/utils"
	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

type loginRequest struct {
	ID          int64           `json:"id"`
	PhoneNumber string          `json:"phoneNumber"`
	Balance     decimal.Decimal `json:"balance"`
}

type balanceResponse struct {
	AccountID     int64                  `json:"accountId"`
	Balance       decimal.Decimal        `json:"balance"`
	ServerBalance decimal.Decimal        `json:"serverBalance"`
	Pending       []account.PendingDelta `json:"pending"`
}

// GetSession handles GET /session
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.deps.Session.Account()
	if !ok {
		response.NotFound(w, "no account is logged in", middleware.RequestIDFrom(r.Context()))
		return
	}
	response.OK(w, acc, middleware.RequestIDFrom(r.Context()))
}

// Login handles POST /session
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if _, ok := s.deps.Session.AccountID(); ok {
		s.fail(w, r, errors.NewConflictError("an account is already logged in"))
		return
	}
	if err := utils.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Session.Login(r.Context(), account.Account{
		ID:          req.ID,
		PhoneNumber: req.PhoneNumber,
		Balance:     req.Balance,
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	// rows cached for this account by an earlier run become visible
	if err := s.deps.Records.Load(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}

	acc, _ := s.deps.Session.Account()
	response.Success(w, acc, http.StatusCreated, middleware.RequestIDFrom(r.Context()))
}

// Logout handles DELETE /session
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context(), s.deps.Records); err != nil {
		s.fail(w, r, err)
		return
	}
	response.WriteNoContent(w)
}

// GetBalance handles GET /balance
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.deps.Session.Account()
	if !ok {
		s.fail(w, r, errors.NewValidationError("no account is logged in"))
		return
	}
	pending := s.deps.Session.Pending()
	if pending == nil {
		pending = []account.PendingDelta{}
	}
	response.OK(w, balanceResponse{
		AccountID:     acc.ID,
		Balance:       s.deps.Session.Balance(),
		ServerBalance: acc.Balance,
		Pending:       pending,
	}, middleware.RequestIDFrom(r.Context()))
}

// SetBalance handles PUT /balance with a balance reported by the server
func (s *Server) SetBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Session.SetServerBalance(r.Context(), req.Balance); err != nil {
		s.fail(w, r, err)
		return
	}
	s.GetBalance(w, r)
}
