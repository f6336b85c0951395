// Package mockbackend is an in-memory stand-in for the remote order script.
// It speaks the same action protocol and can inject faults for tests.
package mockbackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/model"
)

type request struct {
	Action     string `json:"action"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type wireItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Icon     string  `json:"icon"`
}

type wireOrder struct {
	OrderID         string      `json:"orderId"`
	CustomerName    string      `json:"customerName"`
	CustomerPhone   string      `json:"customerPhone"`
	Items           interface{} `json:"items"`
	TotalAmount     float64     `json:"totalAmount"`
	Status          string      `json:"status"`
	PickupTime      string      `json:"pickupTime"`
	DeliveryAddress string      `json:"deliveryAddress"`
	Notes           string      `json:"notes"`
	AdminNotes      string      `json:"adminNotes,omitempty"`
	CreatedAt       string      `json:"createdAt"`
	ConfirmedAt     *string     `json:"confirmedAt"`
}

type fault struct {
	httpStatus int    // > 0: answer with this HTTP status
	reject     string // non-empty: answer success=false with this message
	garbage    bool   // answer with a non-JSON body
}

// Server 模拟订单脚本
type Server struct {
	mu            sync.Mutex
	orders        []model.Order
	itemsAsString bool
	faults        []fault
	calls         map[string]int
	gate          chan struct{}
	now           func() time.Time
}

func New(orders []model.Order) *Server {
	s := &Server{calls: make(map[string]int), now: time.Now}
	s.Reset(orders)
	return s
}

// Reset replaces the stored orders.
func (s *Server) Reset(orders []model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make([]model.Order, len(orders))
	for i, o := range orders {
		s.orders[i] = o.Clone()
	}
}

// ItemsAsString makes getOrders send items as "name xN, ..." strings.
func (s *Server) ItemsAsString(v bool) {
	s.mu.Lock()
	s.itemsAsString = v
	s.mu.Unlock()
}

// FailNextHTTP answers the next request with an HTTP error status.
func (s *Server) FailNextHTTP(status int) { s.pushFault(fault{httpStatus: status}) }

// RejectNext answers the next request with success=false.
func (s *Server) RejectNext(message string) { s.pushFault(fault{reject: message}) }

// GarbageNext answers the next request with a body that is not JSON.
func (s *Server) GarbageNext() { s.pushFault(fault{garbage: true}) }

func (s *Server) pushFault(f fault) {
	s.mu.Lock()
	s.faults = append(s.faults, f)
	s.mu.Unlock()
}

// Block holds every mutating request until the returned release is called.
func (s *Server) Block() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls 某 action 被调用次数
func (s *Server) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

// Orders returns a copy of the stored orders.
func (s *Server) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// Handler 返回 gin 路由, 同时挂在 / 与 /exec
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/", s.handle)
	r.POST("/exec", s.handle)
	return r
}

func (s *Server) handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, envelope{Message: "cannot read request"})
		return
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, envelope{Message: "invalid JSON request"})
		return
	}

	s.mu.Lock()
	s.calls[req.Action]++
	var f *fault
	if len(s.faults) > 0 {
		f = &s.faults[0]
		s.faults = s.faults[1:]
	}
	gate := s.gate
	s.mu.Unlock()

	if f != nil {
		switch {
		case f.httpStatus > 0:
			c.String(f.httpStatus, "injected failure")
		case f.garbage:
			c.String(http.StatusOK, "<html>not json</html>")
		default:
			c.JSON(http.StatusOK, envelope{Message: f.reject})
		}
		return
	}

	if gate != nil && req.Action != "getOrders" {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return
		}
	}

	switch req.Action {
	case "getOrders":
		c.JSON(http.StatusOK, envelope{Success: true, Data: s.listOrders()})
	case "updateOrderStatus":
		c.JSON(http.StatusOK, s.updateStatus(req))
	case "confirmOrder":
		c.JSON(http.StatusOK, s.confirm(req))
	default:
		c.JSON(http.StatusOK, envelope{Message: "Unknown action: " + req.Action})
	}
}

func (s *Server) listOrders() []wireOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wireOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, toWire(o, s.itemsAsString))
	}
	return out
}

func (s *Server) updateStatus(req request) envelope {
	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return envelope{Message: "Invalid status: " + req.Status}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(req.OrderID)
	if i < 0 {
		return envelope{Message: "Order not found: " + req.OrderID}
	}
	s.orders[i].Status = status
	return envelope{Success: true, Data: map[string]string{"orderId": req.OrderID, "status": string(status)}}
}

func (s *Server) confirm(req request) envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(req.OrderID)
	if i < 0 {
		return envelope{Message: "Order not found: " + req.OrderID}
	}
	now := s.now()
	s.orders[i].Status = model.OrderStatusConfirmed
	s.orders[i].AdminNotes = req.AdminNotes
	s.orders[i].ConfirmedAt = &now
	return envelope{Success: true, Data: map[string]string{"message": "訂單已確認"}}
}

func (s *Server) indexOf(id string) int {
	for i, o := range s.orders {
		if o.OrderID == id {
			return i
		}
	}
	return -1
}

func toWire(o model.Order, itemsAsString bool) wireOrder {
	w := wireOrder{
		OrderID:         o.OrderID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		AdminNotes:      o.AdminNotes,
		CreatedAt:       formatTime(o.CreatedAt),
		PickupTime:      formatTime(o.PickupTime),
	}
	if o.ConfirmedAt != nil {
		v := formatTime(*o.ConfirmedAt)
		w.ConfirmedAt = &v
	}
	if itemsAsString {
		w.Items = menu.FormatItems(o.Items)
	} else {
		items := make([]wireItem, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, wireItem(it))
		}
		w.Items = items
	}
	return w
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
