package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/order-dashboard/config"
	"github.com/d60-Lab/order-dashboard/internal/api/handler"
	"github.com/d60-Lab/order-dashboard/internal/backend"
	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/mockbackend"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/repository"
	"github.com/d60-Lab/order-dashboard/internal/service"
	"github.com/d60-Lab/order-dashboard/internal/stats"
	"github.com/d60-Lab/order-dashboard/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func sample(now time.Time) []model.Order {
	return []model.Order{
		{OrderID: "ORD001", CustomerName: "王小明", CustomerPhone: "0900000001", Status: model.OrderStatusCompleted, TotalAmount: 100,
			Items: []model.OrderItem{{Name: "滷肉飯", Price: 35, Quantity: 2, Icon: "🍚"}}, CreatedAt: now.Add(-time.Hour)},
		{OrderID: "ORD002", CustomerName: "王小明", CustomerPhone: "0900000001", Status: model.OrderStatusCompleted, TotalAmount: 50,
			Items: []model.OrderItem{{Name: "雞肉飯", Price: 40, Quantity: 1, Icon: "🍗"}}, CreatedAt: now.Add(-2 * time.Hour)},
		{OrderID: "ORD003", CustomerName: "李小華", CustomerPhone: "0900000002", Status: model.OrderStatusPending, TotalAmount: 200,
			CreatedAt: now.Add(-3 * time.Hour)},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *mockbackend.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handler.RegisterValidators())

	now := time.Now()
	mock := mockbackend.New(sample(now))
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // every :memory: connection is its own database
	audit := repository.NewStatusChangeRepository(db)
	require.NoError(t, audit.InitSchema())
	t.Cleanup(func() { _ = audit.Close() })

	client := backend.NewClient(config.BackendConfig{Endpoint: srv.URL + "/exec", Timeout: 2 * time.Second}, menu.Default(), time.Local)
	st := store.New(client)
	svc := service.NewDashboardService(st, stats.New(stats.CompletedOnly, time.Local), audit, service.Options{TopItems: 1, RecentLimit: 10})
	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)

	return NewRouter(handler.NewHandler(svc), Options{}), mock
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListOrders(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(r, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var list service.OrderList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Orders, 3)
	assert.Equal(t, "ORD001", list.Orders[0].OrderID)
	assert.Equal(t, 3, list.Counts[model.FilterAll])

	w, env = do(r, http.MethodGet, "/api/v1/orders?status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "ORD003", list.Orders[0].OrderID)

	w, _ = do(r, http.MethodGet, "/api/v1/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(r, http.MethodGet, "/api/v1/orders/ORD002", "")
	require.Equal(t, http.StatusOK, w.Code)
	var o model.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "雞肉飯", o.Items[0].Name)

	w, _ = do(r, http.MethodGet, "/api/v1/orders/ORD999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	r, mock := setupRouter(t)

	w, _ := do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{"status":"flying"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mock.Calls("updateOrderStatus"))

	w, env := do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{"status":"preparing"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ch store.Change
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	assert.True(t, ch.Applied)
	assert.Equal(t, model.OrderStatusPending, ch.From)
	assert.Equal(t, model.OrderStatusPreparing, ch.To)

	_, env = do(r, http.MethodGet, "/api/v1/orders/ORD003", "")
	var o model.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, model.OrderStatusPreparing, o.Status)

	w, env = do(r, http.MethodGet, "/api/v1/orders/ORD003/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.StatusChange
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, model.OrderStatusPreparing, history[0].ToStatus)
	assert.NotEmpty(t, history[0].RequestID)
}

func TestUpdateStatusBackendFailure(t *testing.T) {
	r, mock := setupRouter(t)
	mock.RejectNext("Order not found: ORD003")

	w, env := do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{"status":"ready"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, env.Message, "Order not found")

	_, env = do(r, http.MethodGet, "/api/v1/orders/ORD003", "")
	var o model.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, model.OrderStatusPending, o.Status)
}

func TestUpdateStatusInFlight(t *testing.T) {
	r, mock := setupRouter(t)
	release := mock.Block()

	first := make(chan int, 1)
	go func() {
		w, _ := do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{"status":"confirmed"}`)
		first <- w.Code
	}()
	require.Eventually(t, func() bool { return mock.Calls("updateOrderStatus") == 1 }, time.Second, 5*time.Millisecond)

	w, _ := do(r, http.MethodPut, "/api/v1/orders/ORD003/status", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	release()
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, 1, mock.Calls("updateOrderStatus"))
}

func TestConfirmOrder(t *testing.T) {
	r, mock := setupRouter(t)

	w, _ := do(r, http.MethodPost, "/api/v1/orders/ORD001/confirm", `{"admin_notes":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, mock.Calls("confirmOrder"))

	w, env := do(r, http.MethodPost, "/api/v1/orders/ORD003/confirm", `{"admin_notes":"五分鐘後取餐"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ch store.Change
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	assert.Equal(t, model.OrderStatusConfirmed, ch.To)

	_, env = do(r, http.MethodGet, "/api/v1/orders/ORD003", "")
	var o model.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "五分鐘後取餐", o.AdminNotes)
	assert.NotNil(t, o.ConfirmedAt)
}

func TestRefresh(t *testing.T) {
	r, mock := setupRouter(t)

	mock.Reset(sample(time.Now())[:1])
	w, env := do(r, http.MethodPost, "/api/v1/orders/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 1, body.Count)

	mock.FailNextHTTP(http.StatusInternalServerError)
	w, _ = do(r, http.MethodPost, "/api/v1/orders/refresh", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStatistics(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(r, http.MethodGet, "/api/v1/stats?range=all&top=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rep stats.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.InDelta(t, 150, rep.TotalRevenue, 1e-9)
	assert.Equal(t, 1, rep.UniqueCustomers)
	assert.InDelta(t, 75, rep.AverageOrderValue, 1e-9)
	require.Len(t, rep.PopularItems, 1)
	assert.Equal(t, "滷肉飯", rep.PopularItems[0].Name)

	w, _ = do(r, http.MethodGet, "/api/v1/stats?range=month&month=2024/02", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, http.MethodGet, "/api/v1/stats?granularity=week", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, http.MethodGet, "/api/v1/stats?top=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestStatisticsTopZeroListsEveryItem(t *testing.T) {
	r, _ := setupRouter(t)

	var rep stats.Report
	_, env := do(r, http.MethodGet, "/api/v1/stats", "")
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Len(t, rep.PopularItems, 1, "configured default")

	w, env := do(r, http.MethodGet, "/api/v1/stats?top=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	require.Len(t, rep.PopularItems, 2)
	assert.Equal(t, "滷肉飯", rep.PopularItems[0].Name)
	assert.Equal(t, "雞肉飯", rep.PopularItems[1].Name)
}

func TestConfirmOrderEmptyBody(t *testing.T) {
	r, mock := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ORD003/confirm", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, mock.Calls("confirmOrder"))

	w, _ = do(r, http.MethodPost, "/api/v1/orders/ORD002/confirm", "")
	assert.Equal(t, http.StatusConflict, w.Code, "a bodiless confirm still reaches the handler")

	w, _ = do(r, http.MethodPost, "/api/v1/orders/ORD003/confirm", `{"admin_notes":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
