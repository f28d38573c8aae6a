package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioRecords() []Transaction {
	records := []Transaction{
		tx(1, 5, 9, "10", 100),
		tx(2, 9, 5, "20", 200),
	}
	SortByTimeDesc(records)
	return records
}

func TestApplyDirection(t *testing.T) {
	records := scenarioRecords()

	tests := []struct {
		name      string
		direction Direction
		want      []int64
	}{
		{name: "incoming", direction: Incoming, want: []int64{2}},
		{name: "outgoing", direction: Outgoing, want: []int64{1}},
		{name: "all keeps time order", direction: All, want: []int64{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(records, 5, Filter{Direction: tt.direction})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyDirectionSelfTransfer(t *testing.T) {
	records := []Transaction{tx(7, 5, 5, "3", 10)}

	assert.Len(t, Apply(records, 5, Filter{Direction: Incoming}), 1)
	assert.Len(t, Apply(records, 5, Filter{Direction: Outgoing}), 1)
}

func TestApplyDateRangeInclusive(t *testing.T) {
	records := []Transaction{
		tx(1, 9, 5, "1", 99),
		tx(2, 9, 5, "1", 100),
		tx(3, 9, 5, "1", 150),
		tx(4, 9, 5, "1", 200),
		tx(5, 9, 5, "1", 201),
	}
	SortByTimeDesc(records)

	got := Apply(records, 5, Filter{Direction: All, DateRange: &DateRange{Start: 100, End: 200}})

	assert.Equal(t, []int64{4, 3, 2}, ids(got))
}

func TestApplySearch(t *testing.T) {
	coffee := tx(1, 5, 9, "15", 100)
	coffee.Comment = "Morning Coffee"
	rent := tx(2, 5, 9, "450.50", 200)
	rent.Comment = "rent for march"
	records := []Transaction{rent, coffee}

	tests := []struct {
		name   string
		search string
		want   []int64
	}{
		{name: "comment case-insensitive", search: "coffee", want: []int64{1}},
		{name: "comment with interior space", search: "for march", want: []int64{2}},
		{name: "amount textual", search: "450.5", want: []int64{2}},
		{name: "amount with trailing zeros", search: "15.00", want: []int64{1}},
		{name: "no match", search: "groceries", want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(records, 5, Filter{Direction: All, SearchText: tt.search})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyComposesAllFilters(t *testing.T) {
	a := tx(1, 5, 9, "10", 100)
	a.Comment = "lunch"
	b := tx(2, 5, 9, "10", 300)
	b.Comment = "lunch"
	c := tx(3, 9, 5, "10", 150)
	c.Comment = "lunch"
	records := []Transaction{b, c, a}

	got := Apply(records, 5, Filter{
		Direction:  Outgoing,
		DateRange:  &DateRange{Start: 0, End: 200},
		SearchText: "LUNCH",
	})

	assert.Equal(t, []int64{1}, ids(got))
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	records := scenarioRecords()
	_ = Apply(records, 5, Filter{Direction: Outgoing})
	assert.Equal(t, []int64{2, 1}, ids(records))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" Outgoing ")
	require.NoError(t, err)
	assert.Equal(t, Outgoing, d)

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Incoming, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, DefaultFilter().Validate())
	assert.Error(t, Filter{Direction: "up"}.Validate())
	assert.Error(t, Filter{Direction: All, DateRange: &DateRange{Start: 10, End: 5}}.Validate())
}
