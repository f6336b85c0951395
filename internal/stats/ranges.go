package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// RangeKind 统计时间范围
type RangeKind string

const (
	RangeAll       RangeKind = "all"
	RangeToday     RangeKind = "today"
	RangeThisMonth RangeKind = "this_month"
	RangeThisYear  RangeKind = "this_year"
	RangeMonth     RangeKind = "month" // a caller-chosen calendar month
)

// DateRange is evaluated against "now" at call time.
type DateRange struct {
	Kind  RangeKind  `json:"kind"`
	Year  int        `json:"year,omitempty"`
	Month time.Month `json:"month,omitempty"`
}

// ParseRange reads a range kind and, for RangeMonth, a "YYYY-MM" month.
func ParseRange(kind, month string) (DateRange, error) {
	switch k := RangeKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "", RangeAll:
		return DateRange{Kind: RangeAll}, nil
	case RangeToday, RangeThisMonth, RangeThisYear:
		return DateRange{Kind: k}, nil
	case RangeMonth:
		t, err := time.Parse("2006-01", strings.TrimSpace(month))
		if err != nil {
			return DateRange{}, fmt.Errorf("month must look like 2006-01: %q", month)
		}
		return DateRange{Kind: RangeMonth, Year: t.Year(), Month: t.Month()}, nil
	default:
		return DateRange{}, fmt.Errorf("unknown range %q", kind)
	}
}

// Bounds returns the inclusive [start, end] of the range in loc. Relative
// ranges end at now itself; a custom month ends at the last instant of its
// last day. bounded is false for RangeAll.
func (r DateRange) Bounds(now time.Time, loc *time.Location) (start, end time.Time, bounded bool) {
	now = now.In(loc)
	y, m, d := now.Date()
	switch r.Kind {
	case RangeToday:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), now, true
	case RangeThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), now, true
	case RangeThisYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), now, true
	case RangeMonth:
		start = time.Date(r.Year, r.Month, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), true
	}
	return time.Time{}, time.Time{}, false
}

func (r DateRange) String() string {
	if r.Kind == RangeMonth {
		return fmt.Sprintf("month:%04d-%02d", r.Year, int(r.Month))
	}
	return string(r.Kind)
}

// FilterByRange keeps orders created inside the range. Orders without a
// usable creation time only appear under RangeAll.
func FilterByRange(orders []model.Order, r DateRange, now time.Time, loc *time.Location) []model.Order {
	start, end, bounded := r.Bounds(now, loc)
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if bounded {
			if o.CreatedAt.IsZero() || o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}
