package transaction

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// Direction selects transactions relative to the logged-in account
type Direction string

const (
	// Incoming keeps transactions received by the account
	Incoming Direction = "incoming"
	// Outgoing keeps transactions sent by the account
	Outgoing Direction = "outgoing"
	// All applies no directional filter
	All Direction = "all"
)

// ParseDirection converts user input into a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Incoming, "":
		return Incoming, nil
	case Outgoing:
		return Outgoing, nil
	case All:
		return All, nil
	default:
		return "", errors.NewValidationError("direction must be one of incoming, outgoing, all").WithDetail("direction", s)
	}
}

// DateRange bounds TransactionTime, both ends inclusive
type DateRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether ts lies within [Start, End].
func (r DateRange) Contains(ts int64) bool {
	return ts >= r.Start && ts <= r.End
}

// Filter is the transient filter state owned by the view-model
type Filter struct {
	Direction  Direction  `json:"direction"`
	DateRange  *DateRange `json:"dateRange,omitempty"`
	SearchText string     `json:"searchText,omitempty"`
}

// DefaultFilter is the state a view starts with on activation.
func DefaultFilter() Filter {
	return Filter{Direction: Incoming}
}

// Validate checks the filter before it is applied
func (f Filter) Validate() error {
	switch f.Direction {
	case Incoming, Outgoing, All:
	default:
		return errors.NewValidationError("unknown direction").WithDetail("direction", string(f.Direction))
	}
	if f.DateRange != nil && f.DateRange.Start > f.DateRange.End {
		return errors.NewValidationError("date range start is after end").
			WithDetail("start", f.DateRange.Start).
			WithDetail("end", f.DateRange.End)
	}
	return nil
}

// NormalizeSearch trims surrounding whitespace from user search input.
func NormalizeSearch(s string) string {
	return strings.TrimSpace(s)
}

// Apply derives the filtered view of records for accountID. The input order is
// preserved, so a snapshot sorted by time descending stays sorted. The input
// slice is never modified.
func Apply(records []Transaction, accountID int64, f Filter) []Transaction {
	search := strings.ToLower(f.SearchText)
	searchAmount, amountErr := decimal.NewFromString(f.SearchText)
	hasAmount := amountErr == nil

	out := make([]Transaction, 0, len(records))
	for _, t := range records {
		switch f.Direction {
		case Incoming:
			if !t.IsIncomingFor(accountID) {
				continue
			}
		case Outgoing:
			if !t.IsOutgoingFor(accountID) {
				continue
			}
		}

		if f.DateRange != nil && !f.DateRange.Contains(t.TransactionTime) {
			continue
		}

		if search != "" && !matchesSearch(t, search, f.SearchText, searchAmount, hasAmount) {
			continue
		}

		out = append(out, t)
	}
	return out
}

// matchesSearch is true when the comment contains the search text
// case-insensitively, or the amount equals it.
func matchesSearch(t Transaction, lowered, raw string, amount decimal.Decimal, hasAmount bool) bool {
	if strings.Contains(strings.ToLower(t.Comment), lowered) {
		return true
	}
	if t.Amount.String() == raw {
		return true
	}
	return hasAmount && t.Amount.Equal(amount)
}
