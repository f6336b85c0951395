package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange("", "")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, r.Kind)

	r, err = ParseRange("Today", "")
	require.NoError(t, err)
	assert.Equal(t, RangeToday, r.Kind)

	r, err = ParseRange("month", "2024-02")
	require.NoError(t, err)
	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, time.February, r.Month)

	_, err = ParseRange("month", "Feb 2024")
	assert.Error(t, err)
	_, err = ParseRange("week", "")
	assert.Error(t, err)
}

func TestFilterByRange_Today(t *testing.T) {
	now := time.Date(2024, 3, 15, 15, 0, 0, 0, taipei)
	orders := []model.Order{
		{OrderID: "recent", CreatedAt: now.Add(-time.Minute)},
		{OrderID: "yesterday", CreatedAt: now.Add(-25 * time.Hour)},
		{OrderID: "midnight", CreatedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, taipei)},
		{OrderID: "undated"},
	}

	got := FilterByRange(orders, DateRange{Kind: RangeToday}, now, taipei)
	ids := make([]string, 0, len(got))
	for _, o := range got {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"recent", "midnight"}, ids)

	assert.Len(t, FilterByRange(orders, DateRange{Kind: RangeAll}, now, taipei), 4)
}

func TestFilterByRange_CustomMonthBoundaries(t *testing.T) {
	now := time.Date(2024, 3, 15, 15, 0, 0, 0, taipei)
	r := DateRange{Kind: RangeMonth, Year: 2024, Month: time.February}
	orders := []model.Order{
		{OrderID: "first", CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, taipei)},
		{OrderID: "last", CreatedAt: time.Date(2024, 2, 29, 23, 59, 59, 0, taipei)},
		{OrderID: "before", CreatedAt: time.Date(2024, 1, 31, 23, 59, 59, 0, taipei)},
		{OrderID: "after", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, taipei)},
	}

	got := FilterByRange(orders, r, now, taipei)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].OrderID)
	assert.Equal(t, "last", got[1].OrderID)
}

func TestFilterByRange_ThisYear(t *testing.T) {
	now := time.Date(2024, 3, 15, 15, 0, 0, 0, taipei)
	orders := []model.Order{
		{OrderID: "jan", CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, taipei)},
		{OrderID: "lastyear", CreatedAt: time.Date(2023, 12, 31, 23, 0, 0, 0, taipei)},
		{OrderID: "future", CreatedAt: now.Add(time.Hour)},
	}
	got := FilterByRange(orders, DateRange{Kind: RangeThisYear}, now, taipei)
	require.Len(t, got, 1)
	assert.Equal(t, "jan", got[0].OrderID)
}

func TestParseRevenuePolicy(t *testing.T) {
	p, err := ParseRevenuePolicy("")
	require.NoError(t, err)
	assert.Equal(t, CompletedOnly, p)
	p, err = ParseRevenuePolicy("non_cancelled")
	require.NoError(t, err)
	assert.Equal(t, NonCancelled, p)
	_, err = ParseRevenuePolicy("everything")
	assert.Error(t, err)
}
