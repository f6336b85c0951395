package stats

import (
	"time"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// AllItems as Query.TopItems lists every item instead of the top N.
const AllItems = -1

// Query 统计请求参数. The dashboard service replaces a zero TopItems or
// RecentLimit with its configured default.
type Query struct {
	Range       DateRange
	Granularity Granularity
	TopItems    int
	RecentLimit int
}

// Report is the plain data behind the statistics view; rendering is left to
// the caller.
type Report struct {
	Policy            RevenuePolicy             `json:"policy"`
	PolicyNote        string                    `json:"policy_note"`
	Range             string                    `json:"range"`
	From              *time.Time                `json:"from,omitempty"`
	To                *time.Time                `json:"to,omitempty"`
	GeneratedAt       time.Time                 `json:"generated_at"`
	TotalRevenue      float64                   `json:"total_revenue"`
	OrderCount        int                       `json:"order_count"`
	AverageOrderValue float64                   `json:"average_order_value"`
	UniqueCustomers   int                       `json:"unique_customers"`
	PopularItems      []ItemSales               `json:"popular_items"`
	Granularity       Granularity               `json:"granularity"`
	Buckets           []Bucket                  `json:"buckets"`
	StatusBreakdown   map[model.OrderStatus]int `json:"status_breakdown"`
	RecentCompleted   []model.Order             `json:"recent_completed"`
}

// Summarize filters by date range first, then applies the revenue policy.
func (a *Aggregator) Summarize(orders []model.Order, q Query, now time.Time) Report {
	if q.Granularity == "" {
		q.Granularity = Day
	}
	if q.Range.Kind == "" {
		q.Range.Kind = RangeAll
	}

	inRange := FilterByRange(orders, q.Range, now, a.loc)
	r := Report{
		Policy:            a.policy,
		PolicyNote:        a.policy.Describe(),
		Range:             q.Range.String(),
		GeneratedAt:       now.In(a.loc),
		TotalRevenue:      a.TotalRevenue(inRange),
		OrderCount:        a.OrderCount(inRange),
		AverageOrderValue: a.AverageOrderValue(inRange),
		UniqueCustomers:   a.UniqueCustomers(inRange),
		PopularItems:      a.PopularItems(inRange, q.TopItems),
		Granularity:       q.Granularity,
		Buckets:           a.TimeBucketed(inRange, q.Granularity),
		StatusBreakdown:   StatusBreakdown(inRange),
		RecentCompleted:   RecentCompleted(inRange, q.RecentLimit),
	}
	if start, end, ok := q.Range.Bounds(now, a.loc); ok {
		r.From, r.To = &start, &end
	}
	return r
}
