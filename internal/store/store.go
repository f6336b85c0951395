// Package store owns the in-memory order list fetched from the backend and
// mediates every status change made to it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/internal/backend"
	"github.com/d60-Lab/order-dashboard/internal/inflight"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

var (
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrTransitionDenied = errors.New("status transition not allowed")
	ErrNotPending       = errors.New("order is not pending")
	ErrEmptyOrderID     = errors.New("order id is required")
	ErrUpdateInFlight   = inflight.ErrBusy
)

// Backend is the remote order source.
type Backend interface {
	FetchOrders(ctx context.Context) ([]model.Order, error)
	SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (backend.StatusAck, error)
	ConfirmOrder(ctx context.Context, orderID, adminNotes string) (string, error)
}

// Change describes a status change acknowledged by the backend.
type Change struct {
	OrderID    string            `json:"order_id"`
	From       model.OrderStatus `json:"from,omitempty"` // empty when the order is not loaded locally
	To         model.OrderStatus `json:"to"`
	AdminNotes string            `json:"admin_notes,omitempty"`
	At         time.Time         `json:"at"`
	Applied    bool              `json:"applied"` // false when the order was not in the local list
}

// Store 订单列表与状态流转
type Store struct {
	backend Backend
	guard   inflight.Guard
	policy  model.TransitionPolicy
	now     func() time.Time

	mu       sync.RWMutex
	orders   []model.Order
	index    map[string]int
	version  uint64
	loadedAt time.Time
}

type Option func(*Store)

func WithGuard(g inflight.Guard) Option { return func(s *Store) { s.guard = g } }

func WithPolicy(p model.TransitionPolicy) Option { return func(s *Store) { s.policy = p } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		guard:   inflight.NewMemory(),
		policy:  model.TransitionAny,
		now:     time.Now,
		index:   map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the whole list from the backend, newest first. Orders with
// equal creation times keep their source order. On failure the list is
// emptied and the error returned, unless ctx itself was cancelled or timed
// out, in which case the current list is kept.
func (s *Store) Load(ctx context.Context) error {
	orders, err := s.backend.FetchOrders(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("order load abandoned by caller, keeping current list", zap.Error(ctx.Err()))
			return fmt.Errorf("load orders: %w", err)
		}
		s.replace(nil)
		return fmt.Errorf("load orders: %w", err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(orders))
	kept := orders[:0]
	for _, o := range orders {
		if _, dup := seen[o.OrderID]; dup {
			logger.Warn("duplicate order id from backend, keeping newest", zap.String("order_id", o.OrderID))
			continue
		}
		seen[o.OrderID] = struct{}{}
		kept = append(kept, o)
	}

	s.replace(kept)
	logger.Info("orders loaded", zap.Int("count", len(kept)))
	return nil
}

func (s *Store) replace(orders []model.Order) {
	idx := make(map[string]int, len(orders))
	for i, o := range orders {
		idx[o.OrderID] = i
	}
	s.mu.Lock()
	s.orders = orders
	s.index = idx
	s.version++
	s.loadedAt = s.now()
	s.mu.Unlock()
}

// Orders 返回全部订单快照
func (s *Store) Orders() []model.Order {
	return s.FilterByStatus(model.FilterAll)
}

// FilterByStatus projects the list without touching it.
func (s *Store) FilterByStatus(f model.StatusFilter) []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.Matches(o.Status) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Counts 各状态订单数, 含 all
func (s *Store) Counts() map[model.StatusFilter]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.StatusFilter]int, len(model.AllStatuses)+1)
	for _, st := range model.AllStatuses {
		counts[model.StatusFilter(st)] = 0
	}
	for _, o := range s.orders {
		counts[model.StatusFilter(o.Status)]++
	}
	counts[model.FilterAll] = len(s.orders)
	return counts
}

func (s *Store) Get(orderID string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[orderID]
	if !ok {
		return model.Order{}, false
	}
	return s.orders[i].Clone(), true
}

// Version increases on every load and every applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// UpdateStatus sends the change to the backend and, once acknowledged,
// applies it to the matching local order in place. On failure nothing
// changes locally. Orders absent from the local list are still sent; the
// local side is then a no-op.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (Change, error) {
	if orderID == "" {
		return Change{}, ErrEmptyOrderID
	}
	if !status.Valid() {
		return Change{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	release, err := s.guard.Acquire(ctx, orderID)
	if err != nil {
		return Change{}, err
	}
	defer release()

	// read under the guard so a change finished just before is seen
	from, known := s.statusOf(orderID)
	if known && !s.policy.Allows(from, status) {
		return Change{}, fmt.Errorf("%w: %s -> %s", ErrTransitionDenied, from, status)
	}

	if _, err := s.backend.SetOrderStatus(ctx, orderID, status); err != nil {
		return Change{}, err
	}

	return s.apply(orderID, func(o *model.Order) {
		o.Status = status
	}, Change{OrderID: orderID, To: status}), nil
}

// ConfirmOrder moves a pending order to confirmed and attaches a staff note.
func (s *Store) ConfirmOrder(ctx context.Context, orderID, adminNotes string) (Change, error) {
	if orderID == "" {
		return Change{}, ErrEmptyOrderID
	}

	release, err := s.guard.Acquire(ctx, orderID)
	if err != nil {
		return Change{}, err
	}
	defer release()

	if from, known := s.statusOf(orderID); known && from != model.OrderStatusPending {
		return Change{}, fmt.Errorf("%w: %s is %s", ErrNotPending, orderID, from)
	}

	if _, err := s.backend.ConfirmOrder(ctx, orderID, adminNotes); err != nil {
		return Change{}, err
	}

	return s.apply(orderID, func(o *model.Order) {
		o.Status = model.OrderStatusConfirmed
		o.AdminNotes = adminNotes
		if o.ConfirmedAt == nil {
			at := s.now()
			o.ConfirmedAt = &at
		}
	}, Change{OrderID: orderID, To: model.OrderStatusConfirmed, AdminNotes: adminNotes}), nil
}

func (s *Store) statusOf(orderID string) (model.OrderStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[orderID]
	if !ok {
		return "", false
	}
	return s.orders[i].Status, true
}

// apply mutates one order in place. The lookup happens after the backend
// answered, so a reload in between is honoured.
func (s *Store) apply(orderID string, mutate func(*model.Order), ch Change) Change {
	now := s.now()
	ch.At = now

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[orderID]
	if !ok {
		logger.Info("status change acknowledged for order not loaded locally", zap.String("order_id", orderID))
		return ch
	}
	o := &s.orders[i]
	ch.From = o.Status
	mutate(o)
	o.UpdatedAt = &now
	ch.Applied = true
	s.version++
	return ch
}
