package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/order-dashboard/config"
	"github.com/d60-Lab/order-dashboard/internal/backend"
	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/mockbackend"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/repository"
	"github.com/d60-Lab/order-dashboard/internal/stats"
	"github.com/d60-Lab/order-dashboard/internal/store"
	"github.com/d60-Lab/order-dashboard/pkg/requestid"
)

var now = time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)

func fixtureOrders() []model.Order {
	return []model.Order{
		{OrderID: "A", CustomerName: "王小明", CustomerPhone: "0900000001", Status: model.OrderStatusCompleted, TotalAmount: 100,
			Items: []model.OrderItem{{Name: "滷肉飯", Price: 35, Quantity: 2, Icon: "🍚"}}, CreatedAt: now.Add(-time.Hour)},
		{OrderID: "B", CustomerName: "王小明", CustomerPhone: "0900000001", Status: model.OrderStatusCompleted, TotalAmount: 50,
			Items: []model.OrderItem{{Name: "雞肉飯", Price: 40, Quantity: 1, Icon: "🍗"}}, CreatedAt: now.Add(-2 * time.Hour)},
		{OrderID: "C", CustomerName: "李小華", CustomerPhone: "0900000002", Status: model.OrderStatusPending, TotalAmount: 200,
			CreatedAt: now.Add(-3 * time.Hour)},
	}
}

type failingAudit struct {
	repository.StatusChangeRepository
	calls int
}

func (f *failingAudit) Create(context.Context, *model.StatusChange) error {
	f.calls++
	return errors.New("disk full")
}

func setup(t *testing.T, audit repository.StatusChangeRepository) (DashboardService, *mockbackend.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock := mockbackend.New(fixtureOrders())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(config.BackendConfig{Endpoint: srv.URL + "/exec", Timeout: 2 * time.Second}, menu.Default(), time.UTC)
	st := store.New(client, store.WithClock(func() time.Time { return now }))
	svc := NewDashboardService(st, stats.New(stats.CompletedOnly, time.UTC), audit, Options{TopItems: 5, RecentLimit: 10, Now: func() time.Time { return now }})

	n, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return svc, mock
}

func sqliteAudit(t *testing.T) repository.StatusChangeRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // every :memory: connection is its own database
	repo := repository.NewStatusChangeRepository(db)
	require.NoError(t, repo.InitSchema())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestDashboardService_ListAndGet(t *testing.T) {
	svc, _ := setup(t, nil)
	ctx := context.Background()

	list := svc.ListOrders(ctx, "")
	assert.Equal(t, model.FilterAll, list.Filter)
	require.Len(t, list.Orders, 3)
	assert.Equal(t, "A", list.Orders[0].OrderID)
	assert.Equal(t, 3, list.Counts[model.FilterAll])
	assert.Equal(t, 2, list.Counts[model.StatusFilter(model.OrderStatusCompleted)])
	assert.True(t, list.LoadedAt.Equal(now))

	pending := svc.ListOrders(ctx, model.StatusFilter(model.OrderStatusPending))
	require.Len(t, pending.Orders, 1)
	assert.Equal(t, "C", pending.Orders[0].OrderID)

	o, err := svc.GetOrder(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "雞肉飯", o.Items[0].Name)

	_, err = svc.GetOrder(ctx, "ZZZ")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDashboardService_ConfirmRecordsHistory(t *testing.T) {
	audit := sqliteAudit(t)
	svc, mock := setup(t, audit)
	ctx := requestid.WithContext(context.Background(), "req-1")

	ch, err := svc.ConfirmOrder(ctx, "C", "加辣")
	require.NoError(t, err)
	assert.True(t, ch.Applied)

	_, err = svc.UpdateStatus(ctx, "C", model.OrderStatusPreparing)
	require.NoError(t, err)

	history, err := svc.History(ctx, "C", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.OrderStatusPreparing, history[0].ToStatus)
	assert.Equal(t, model.OrderStatusConfirmed, history[0].FromStatus)
	assert.Equal(t, model.OrderStatusPending, history[1].FromStatus)
	assert.Equal(t, "加辣", history[1].AdminNotes)
	assert.Equal(t, "req-1", history[1].RequestID)

	assert.Equal(t, 1, mock.Calls("confirmOrder"))
	assert.Equal(t, 1, mock.Calls("updateOrderStatus"))
}

func TestDashboardService_AuditFailureDoesNotFailUpdate(t *testing.T) {
	audit := &failingAudit{}
	svc, _ := setup(t, audit)

	ch, err := svc.UpdateStatus(context.Background(), "C", model.OrderStatusCancelled)
	require.NoError(t, err)
	assert.True(t, ch.Applied)
	assert.Equal(t, 1, audit.calls)

	o, err := svc.GetOrder(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, o.Status)
}

func TestDashboardService_BackendRejectionLeavesStateAlone(t *testing.T) {
	audit := sqliteAudit(t)
	svc, mock := setup(t, audit)
	mock.RejectNext("找不到訂單")

	_, err := svc.UpdateStatus(context.Background(), "C", model.OrderStatusReady)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrRejected)

	o, _ := svc.GetOrder(context.Background(), "C")
	assert.Equal(t, model.OrderStatusPending, o.Status)
	history, err := svc.History(context.Background(), "C", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDashboardService_Statistics(t *testing.T) {
	svc, _ := setup(t, nil)

	r := svc.Statistics(context.Background(), stats.Query{Range: stats.DateRange{Kind: stats.RangeToday}})
	assert.InDelta(t, 150, r.TotalRevenue, 1e-9)
	assert.Equal(t, 1, r.UniqueCustomers)
	assert.InDelta(t, 75, r.AverageOrderValue, 1e-9)
	require.Len(t, r.PopularItems, 2)
	assert.Equal(t, "滷肉飯", r.PopularItems[0].Name)
	assert.Len(t, r.RecentCompleted, 2)

	counts := svc.Counts(context.Background())
	assert.Equal(t, 1, counts[model.StatusFilter(model.OrderStatusPending)])
}

func TestDashboardService_RefreshFailureEmptiesList(t *testing.T) {
	svc, mock := setup(t, nil)
	mock.RejectNext("quota exceeded")

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Empty(t, svc.ListOrders(context.Background(), model.FilterAll).Orders)
}

func TestAuditRecorder_DrainsOnStop(t *testing.T) {
	audit := sqliteAudit(t)
	rec := NewAuditRecorder(audit, 16)
	stop := rec.Start(1)

	gin.SetMode(gin.TestMode)
	mock := mockbackend.New(fixtureOrders())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	client := backend.NewClient(config.BackendConfig{Endpoint: srv.URL, Timeout: 2 * time.Second}, menu.Default(), time.UTC)
	svc := NewDashboardService(store.New(client), stats.New(stats.CompletedOnly, time.UTC), audit, Options{Recorder: rec})
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	_, err = svc.ConfirmOrder(context.Background(), "C", "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), "C", model.OrderStatusReady)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Zero(t, rec.QueueLen())
	assert.False(t, rec.Enqueue(&model.StatusChange{OrderID: "late"}))

	count, err := audit.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// stopped recorder falls back to inline writes
	_, err = svc.UpdateStatus(context.Background(), "C", model.OrderStatusCompleted)
	require.NoError(t, err)
	count, err = audit.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
