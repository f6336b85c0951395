package model

import (
	"fmt"
	"strings"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every status; the first five are the canonical forward path.
var AllStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var statusLabels = map[OrderStatus]string{
	OrderStatusPending:   "待確認",
	OrderStatusConfirmed: "已確認",
	OrderStatusPreparing: "製作中",
	OrderStatusReady:     "可取餐",
	OrderStatusCompleted: "已完成",
	OrderStatusCancelled: "已取消",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal completed 与 cancelled 为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Next returns the canonical forward successor, or false for terminal states.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusPending:
		return OrderStatusConfirmed, true
	case OrderStatusConfirmed:
		return OrderStatusPreparing, true
	case OrderStatusPreparing:
		return OrderStatusReady, true
	case OrderStatusReady:
		return OrderStatusCompleted, true
	}
	return "", false
}

func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseOrderStatus 大小写不敏感
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", v)
	}
	return s, nil
}

// StatusFilter is an OrderStatus or FilterAll.
type StatusFilter string

const FilterAll StatusFilter = "all"

func ParseStatusFilter(v string) (StatusFilter, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == string(FilterAll) {
		return FilterAll, nil
	}
	s, err := ParseOrderStatus(v)
	if err != nil {
		return "", err
	}
	return StatusFilter(s), nil
}

// Matches reports whether an order status passes the filter.
func (f StatusFilter) Matches(s OrderStatus) bool {
	return f == FilterAll || OrderStatus(f) == s
}

// TransitionPolicy 状态流转策略
type TransitionPolicy string

const (
	// TransitionAny lets staff set any status from any status, backward moves
	// included, so mistakes can be corrected. Forward order is still the
	// expected common case.
	TransitionAny TransitionPolicy = "any"
	// TransitionForward allows only the next canonical step, or cancelling a
	// non-terminal order.
	TransitionForward TransitionPolicy = "forward"
)

func ParseTransitionPolicy(v string) (TransitionPolicy, error) {
	switch p := TransitionPolicy(v); p {
	case TransitionAny, TransitionForward:
		return p, nil
	}
	return "", fmt.Errorf("unknown transition policy %q", v)
}

// Allows 判断 from -> to 是否允许; 设为当前状态总是允许
func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to || p != TransitionForward {
		return true
	}
	if to == OrderStatusCancelled {
		return !from.IsTerminal()
	}
	next, ok := from.Next()
	return ok && next == to
}
