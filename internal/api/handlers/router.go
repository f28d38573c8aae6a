package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/api/middleware"
	"github.com/hirosato/pocketbank/backend/internal/api/response"
	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/domain/transfer"
	"github.com/hirosato/pocketbank/backend/internal/domain/viewmodel"
)

// Session is the part of account.Session the API exposes
type Session interface {
	Account() (account.Account, bool)
	AccountID() (int64, bool)
	Balance() decimal.Decimal
	Pending() []account.PendingDelta
	Login(ctx context.Context, acc account.Account) error
	Logout(ctx context.Context, caches ...account.Resetter) error
	SetServerBalance(ctx context.Context, balance decimal.Decimal) error
}

// Records is the local transaction cache
type Records interface {
	QueryAll() []transaction.Transaction
	Load(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Refresher pulls the latest transactions of an account
type Refresher interface {
	Refresh(ctx context.Context, accountID int64) (int, error)
}

// Dependencies of the local API
type Dependencies struct {
	Session   Session
	Records   Records
	Refresher Refresher
	View      *viewmodel.ViewModel
	Transfers *transfer.Flow
	Logger    *zap.Logger
}

// Server serves the local API
type Server struct {
	deps   Dependencies
	logger *zap.Logger
	router *mux.Router
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		logger: logger.Named("api"),
		router: mux.NewRouter(),
	}
	s.RegisterRoutes()
	return s
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.router.HandleFunc("/health", s.Health).Methods(http.MethodGet)

	s.router.HandleFunc("/session", s.GetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/session", s.Login).Methods(http.MethodPost)
	s.router.HandleFunc("/session", s.Logout).Methods(http.MethodDelete)

	s.router.HandleFunc("/balance", s.GetBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/balance", s.SetBalance).Methods(http.MethodPut)

	s.router.HandleFunc("/transactions", s.ListTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions/{id:[0-9]+}/repeat", s.RepeatTransaction).Methods(http.MethodPost)
	s.router.HandleFunc("/sync", s.Sync).Methods(http.MethodPost)

	s.router.HandleFunc("/transfer", s.GetTransfer).Methods(http.MethodGet)
	s.router.HandleFunc("/transfer/confirm", s.ConfirmTransfer).Methods(http.MethodPost)
	s.router.HandleFunc("/transfer/cancel", s.CancelTransfer).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Endpoint not found", middleware.RequestIDFrom(r.Context()))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, middleware.RequestIDFrom(r.Context()))
	})
}

// Handler returns the router wrapped in the request middlewares
func (s *Server) Handler() http.Handler {
	return middleware.Chain(s.router,
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.Recovery(s.logger),
	)
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"}, middleware.RequestIDFrom(r.Context()))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := errors.As(err); !ok || response.StatusFor(appErr) >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	response.Error(w, err, middleware.RequestIDFrom(r.Context()))
}

func (s *Server) accountID() (int64, error) {
	id, ok := s.deps.Session.AccountID()
	if !ok {
		return 0, errors.NewValidationError("no account is logged in")
	}
	return id, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("invalid request body").WithDetail("reason", err.Error())
	}
	return nil
}
