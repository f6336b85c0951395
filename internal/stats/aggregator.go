// Package stats derives read-only sales metrics from an order list. Every
// call recomputes from its input; nothing is cached or mutated.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// Granularity 分桶粒度
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

func ParseGranularity(v string) (Granularity, error) {
	switch g := Granularity(v); g {
	case "", Day:
		return Day, nil
	case Month:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", v)
}

// ItemSales 单品销量
type ItemSales struct {
	Name     string  `json:"name"`
	Icon     string  `json:"icon"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// Bucket aggregates the eligible orders of one calendar day or month.
type Bucket struct {
	Key       string    `json:"key"` // 2006-01-02 or 2006-01
	Start     time.Time `json:"start"`
	Revenue   float64   `json:"revenue"`
	Orders    int       `json:"orders"`
	Customers int       `json:"customers"`
}

// Aggregator applies one revenue policy in one local time zone.
type Aggregator struct {
	policy RevenuePolicy
	loc    *time.Location
}

func New(policy RevenuePolicy, loc *time.Location) *Aggregator {
	if policy == "" {
		policy = DefaultRevenuePolicy
	}
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{policy: policy, loc: loc}
}

func (a *Aggregator) Policy() RevenuePolicy { return a.policy }

func (a *Aggregator) Location() *time.Location { return a.loc }

// Eligible 按营收策略过滤
func (a *Aggregator) Eligible(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if a.policy.Eligible(o) {
			out = append(out, o)
		}
	}
	return out
}

// TotalRevenue sums TotalAmount as reported by the backend; it is never
// recomputed from items.
func (a *Aggregator) TotalRevenue(orders []model.Order) float64 {
	var sum float64
	for _, o := range orders {
		if a.policy.Eligible(o) {
			sum += o.TotalAmount
		}
	}
	return sum
}

func (a *Aggregator) OrderCount(orders []model.Order) int {
	n := 0
	for _, o := range orders {
		if a.policy.Eligible(o) {
			n++
		}
	}
	return n
}

// UniqueCustomers counts distinct phone numbers. Orders without a phone
// cannot be told apart and are not counted.
func (a *Aggregator) UniqueCustomers(orders []model.Order) int {
	phones := make(map[string]struct{})
	for _, o := range orders {
		if a.policy.Eligible(o) && o.CustomerPhone != "" {
			phones[o.CustomerPhone] = struct{}{}
		}
	}
	return len(phones)
}

// AverageOrderValue is 0 when nothing is eligible.
func (a *Aggregator) AverageOrderValue(orders []model.Order) float64 {
	n := a.OrderCount(orders)
	if n == 0 {
		return 0
	}
	return a.TotalRevenue(orders) / float64(n)
}

// PopularItems ranks items by quantity sold, highest first. Ties keep the
// order in which items first appear in the input. limit <= 0 returns all.
func (a *Aggregator) PopularItems(orders []model.Order, limit int) []ItemSales {
	pos := make(map[string]int)
	var ranked []ItemSales
	for _, o := range orders {
		if !a.policy.Eligible(o) {
			continue
		}
		for _, it := range o.Items {
			i, ok := pos[it.Name]
			if !ok {
				i = len(ranked)
				pos[it.Name] = i
				ranked = append(ranked, ItemSales{Name: it.Name, Icon: it.Icon})
			}
			ranked[i].Quantity += it.Quantity
			ranked[i].Revenue += it.Subtotal()
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Quantity > ranked[j].Quantity
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []ItemSales{}
	}
	return ranked
}

// TimeBucketed groups eligible orders by local calendar day or month.
// Buckets are sparse (no empty buckets) and sorted oldest first.
func (a *Aggregator) TimeBucketed(orders []model.Order, g Granularity) []Bucket {
	type acc struct {
		b      Bucket
		phones map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, o := range orders {
		if !a.policy.Eligible(o) || o.CreatedAt.IsZero() {
			continue
		}
		start, key := a.truncate(o.CreatedAt, g)
		ac, ok := groups[key]
		if !ok {
			ac = &acc{b: Bucket{Key: key, Start: start}, phones: map[string]struct{}{}}
			groups[key] = ac
		}
		ac.b.Revenue += o.TotalAmount
		ac.b.Orders++
		if o.CustomerPhone != "" {
			ac.phones[o.CustomerPhone] = struct{}{}
		}
	}

	out := make([]Bucket, 0, len(groups))
	for _, ac := range groups {
		ac.b.Customers = len(ac.phones)
		out = append(out, ac.b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (a *Aggregator) truncate(t time.Time, g Granularity) (time.Time, string) {
	t = t.In(a.loc)
	y, m, d := t.Date()
	if g == Month {
		return time.Date(y, m, 1, 0, 0, 0, 0, a.loc), fmt.Sprintf("%04d-%02d", y, int(m))
	}
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc), fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// StatusBreakdown counts orders per status regardless of eligibility.
func StatusBreakdown(orders []model.Order) map[model.OrderStatus]int {
	out := make(map[model.OrderStatus]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	for _, o := range orders {
		out[o.Status]++
	}
	return out
}

// RecentCompleted returns completed orders, newest first.
func RecentCompleted(orders []model.Order, limit int) []model.Order {
	out := make([]model.Order, 0)
	for _, o := range orders {
		if o.Status == model.OrderStatusCompleted {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
