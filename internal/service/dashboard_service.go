package service

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/repository"
	"github.com/d60-Lab/order-dashboard/internal/stats"
	"github.com/d60-Lab/order-dashboard/internal/store"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
	"github.com/d60-Lab/order-dashboard/pkg/requestid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderList 订单列表视图
type OrderList struct {
	Orders   []model.Order              `json:"orders"`
	Counts   map[model.StatusFilter]int `json:"counts"`
	Filter   model.StatusFilter         `json:"filter"`
	LoadedAt time.Time                  `json:"loaded_at"`
	Version  uint64                     `json:"version"`
}

// DashboardService 后台看板服务
type DashboardService interface {
	Refresh(ctx context.Context) (int, error)
	ListOrders(ctx context.Context, filter model.StatusFilter) OrderList
	GetOrder(ctx context.Context, orderID string) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (store.Change, error)
	ConfirmOrder(ctx context.Context, orderID, adminNotes string) (store.Change, error)
	History(ctx context.Context, orderID string, limit int) ([]*model.StatusChange, error)
	Statistics(ctx context.Context, q stats.Query) stats.Report
	Counts(ctx context.Context) map[model.StatusFilter]int
}

// Options 统计默认值与审计写入方式
type Options struct {
	TopItems    int
	RecentLimit int
	Now         func() time.Time
	// Recorder writes audit entries in the background; nil writes inline.
	Recorder *AuditRecorder
}

type dashboardService struct {
	store *store.Store
	agg   *stats.Aggregator
	audit repository.StatusChangeRepository
	opts  Options
}

// NewDashboardService audit may be nil, in which case changes are not recorded.
func NewDashboardService(st *store.Store, agg *stats.Aggregator, audit repository.StatusChangeRepository, opts Options) DashboardService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &dashboardService{store: st, agg: agg, audit: audit, opts: opts}
}

func (s *dashboardService) Refresh(ctx context.Context) (int, error) {
	if err := s.store.Load(ctx); err != nil {
		return 0, err
	}
	return len(s.store.Orders()), nil
}

func (s *dashboardService) ListOrders(_ context.Context, filter model.StatusFilter) OrderList {
	if filter == "" {
		filter = model.FilterAll
	}
	return OrderList{
		Orders:   s.store.FilterByStatus(filter),
		Counts:   s.store.Counts(),
		Filter:   filter,
		LoadedAt: s.store.LoadedAt(),
		Version:  s.store.Version(),
	}
}

func (s *dashboardService) GetOrder(_ context.Context, orderID string) (model.Order, error) {
	o, ok := s.store.Get(orderID)
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *dashboardService) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (store.Change, error) {
	ch, err := s.store.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return ch, err
	}
	s.record(ctx, ch)
	return ch, nil
}

func (s *dashboardService) ConfirmOrder(ctx context.Context, orderID, adminNotes string) (store.Change, error) {
	ch, err := s.store.ConfirmOrder(ctx, orderID, adminNotes)
	if err != nil {
		return ch, err
	}
	s.record(ctx, ch)
	return ch, nil
}

func (s *dashboardService) History(ctx context.Context, orderID string, limit int) ([]*model.StatusChange, error) {
	if s.audit == nil {
		return []*model.StatusChange{}, nil
	}
	return s.audit.ListByOrderID(ctx, orderID, limit)
}

func (s *dashboardService) Statistics(_ context.Context, q stats.Query) stats.Report {
	if q.TopItems == 0 {
		q.TopItems = s.opts.TopItems
	}
	if q.RecentLimit == 0 {
		q.RecentLimit = s.opts.RecentLimit
	}
	return s.agg.Summarize(s.store.Orders(), q, s.opts.Now())
}

func (s *dashboardService) Counts(_ context.Context) map[model.StatusFilter]int {
	return s.store.Counts()
}

// record writes the audit entry. The status change already happened at the
// backend, so a failure here is only reported.
func (s *dashboardService) record(ctx context.Context, ch store.Change) {
	if s.audit == nil {
		return
	}
	entry := &model.StatusChange{
		OrderID:    ch.OrderID,
		FromStatus: ch.From,
		ToStatus:   ch.To,
		AdminNotes: ch.AdminNotes,
		RequestID:  requestid.FromContext(ctx),
		ChangedAt:  ch.At,
	}
	if s.opts.Recorder != nil && s.opts.Recorder.Enqueue(entry) {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		reportAuditFailure(ctx, entry, err)
	}
}

func reportAuditFailure(ctx context.Context, entry *model.StatusChange, err error) {
	logger.Error("failed to record status change",
		zap.String("order_id", entry.OrderID),
		zap.String("to", string(entry.ToStatus)),
		zap.String("request_id", entry.RequestID),
		zap.Error(err))
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
