package handlers

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hirosato/pocketbank/backend/internal/api/middleware"
	"github.com/hirosato/pocketbank/backend/internal/api/response"
	"github.com/hirosato/pocketbank/backend/internal/common/utils"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

type transactionsResponse struct {
	AccountID    int64                     `json:"accountId"`
	StoreVersion uint64                    `json:"storeVersion"`
	Filter       transaction.Filter        `json:"filter"`
	Transactions []transaction.Transaction `json:"transactions"`
}

// ListTransactions handles GET /transactions. Any of direction, from, to or q
// replaces the corresponding part of the current filter before the view is read.
func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, errors.NewValidationError("limit must be a non-negative integer").WithDetail("limit", v))
			return
		}
		limit = n
	}

	if q.Has("direction") || q.Has("from") || q.Has("to") || q.Has("q") {
		filter, err := filterFromQuery(s.deps.View.Filter(), q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.deps.View.SetFilter(filter.Direction, filter.DateRange, filter.SearchText); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	view := s.deps.View.Current()
	total := len(view.Records)
	records := view.Records
	if limit > 0 && limit < total {
		records = records[:limit]
	}

	response.SuccessWithPagination(w, transactionsResponse{
		AccountID:    view.AccountID,
		StoreVersion: view.StoreVersion,
		Filter:       view.Filter,
		Transactions: records,
	}, &response.Pagination{Total: total, PerPage: limit}, http.StatusOK, middleware.RequestIDFrom(r.Context()))
}

func filterFromQuery(base transaction.Filter, q url.Values) (transaction.Filter, error) {
	f := base
	if q.Has("direction") {
		d, err := transaction.ParseDirection(q.Get("direction"))
		if err != nil {
			return f, err
		}
		f.Direction = d
	}
	if q.Has("q") {
		f.SearchText = q.Get("q")
	}
	if q.Has("from") || q.Has("to") {
		from, to := q.Get("from"), q.Get("to")
		if from == "" && to == "" {
			f.DateRange = nil
			return f, nil
		}
		r := transaction.DateRange{Start: 0, End: math.MaxInt64}
		if from != "" {
			v, err := strconv.ParseInt(from, 10, 64)
			if err != nil {
				return f, errors.NewValidationError("from must be a timestamp").WithDetail("from", from)
			}
			r.Start = v
		}
		if to != "" {
			v, err := strconv.ParseInt(to, 10, 64)
			if err != nil {
				return f, errors.NewValidationError("to must be a timestamp").WithDetail("to", to)
			}
			r.End = v
		}
		f.DateRange = &r
	}
	return f, nil
}

// Sync handles POST /sync
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count, err := s.deps.Refresher.Refresh(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response.OK(w, map[string]int{"count": count}, middleware.RequestIDFrom(r.Context()))
}

// RepeatTransaction handles POST /transactions/{id}/repeat
func (s *Server) RepeatTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParsePositiveInt(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var found *transaction.Transaction
	for _, t := range s.deps.Records.QueryAll() {
		if t.ID == id {
			found = &t
			break
		}
	}
	if found == nil {
		s.fail(w, r, errors.NewNotFoundError("transaction not found").WithDetail("id", id))
		return
	}

	draft, err := s.deps.Transfers.RequestRepeat(*found)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response.OK(w, transferResponse{State: s.deps.Transfers.State().String(), Draft: &draft}, middleware.RequestIDFrom(r.Context()))
}
