package stats

import (
	"fmt"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// RevenuePolicy decides which orders count toward financial statistics.
// The two policies give different numbers for the same data; the dashboard
// reports with exactly one, chosen in configuration.
type RevenuePolicy string

const (
	// CompletedOnly counts completed orders only.
	CompletedOnly RevenuePolicy = "completed_only"
	// NonCancelled counts every order that is not cancelled.
	NonCancelled RevenuePolicy = "non_cancelled"

	DefaultRevenuePolicy = CompletedOnly
)

func ParseRevenuePolicy(v string) (RevenuePolicy, error) {
	switch p := RevenuePolicy(v); p {
	case CompletedOnly, NonCancelled:
		return p, nil
	case "":
		return DefaultRevenuePolicy, nil
	}
	return "", fmt.Errorf("unknown revenue policy %q", v)
}

// Eligible 订单是否计入营收
func (p RevenuePolicy) Eligible(o model.Order) bool {
	switch p {
	case NonCancelled:
		return o.Status != model.OrderStatusCancelled
	default:
		return o.Status == model.OrderStatusCompleted
	}
}

// Describe is the subtitle shown next to revenue figures.
func (p RevenuePolicy) Describe() string {
	if p == NonCancelled {
		return "計算所有未取消訂單"
	}
	return "僅計算已完成訂單"
}
