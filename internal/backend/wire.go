package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

// flexString accepts strings and bare numbers; spreadsheet backends often
// turn phone numbers and IDs into numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexFloat accepts numbers and numeric strings; anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

type wireItem struct {
	Name     flexString `json:"name"`
	Price    flexFloat  `json:"price"`
	Quantity flexFloat  `json:"quantity"`
	Icon     flexString `json:"icon"`
}

type wireOrder struct {
	OrderID         flexString      `json:"orderId"`
	CustomerName    flexString      `json:"customerName"`
	CustomerPhone   flexString      `json:"customerPhone"`
	Items           json.RawMessage `json:"items"`
	TotalAmount     flexFloat       `json:"totalAmount"`
	Status          flexString      `json:"status"`
	PickupTime      flexString      `json:"pickupTime"`
	DeliveryAddress flexString      `json:"deliveryAddress"`
	Notes           flexString      `json:"notes"`
	AdminNotes      flexString      `json:"adminNotes"`
	CreatedAt       flexString      `json:"createdAt"`
	ConfirmedAt     flexString      `json:"confirmedAt"`
}

// decoder turns wire orders into model orders. Local parse problems degrade
// to fallback values instead of dropping the order.
type decoder struct {
	catalog *menu.Catalog
	loc     *time.Location
}

func (d decoder) order(w wireOrder) model.Order {
	o := model.Order{
		OrderID:         strings.TrimSpace(string(w.OrderID)),
		CustomerName:    string(w.CustomerName),
		CustomerPhone:   strings.TrimSpace(string(w.CustomerPhone)),
		Items:           d.items(w.OrderID, w.Items),
		TotalAmount:     math.Max(float64(w.TotalAmount), 0),
		PickupTime:      parseTime(string(w.PickupTime), d.loc),
		DeliveryAddress: strings.TrimSpace(string(w.DeliveryAddress)),
		Notes:           string(w.Notes),
		AdminNotes:      string(w.AdminNotes),
		CreatedAt:       parseTime(string(w.CreatedAt), d.loc),
	}

	status, err := model.ParseOrderStatus(string(w.Status))
	if err != nil {
		logger.Warn("unknown order status, treating as pending",
			zap.String("order_id", o.OrderID), zap.String("status", string(w.Status)))
		status = model.OrderStatusPending
	}
	o.Status = status

	if t := parseTime(string(w.ConfirmedAt), d.loc); !t.IsZero() {
		o.ConfirmedAt = &t
	}
	return o
}

func (d decoder) items(orderID flexString, raw json.RawMessage) []model.OrderItem {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return d.catalog.ParseItems(s)
	case '[':
		var ws []wireItem
		if err := json.Unmarshal(raw, &ws); err != nil {
			logger.Warn("malformed items, dropping", zap.String("order_id", string(orderID)), zap.Error(err))
			return nil
		}
		items := make([]model.OrderItem, 0, len(ws))
		for _, w := range ws {
			it := model.OrderItem{
				Name:     strings.TrimSpace(string(w.Name)),
				Price:    float64(w.Price),
				Quantity: quantity(w.Quantity),
				Icon:     string(w.Icon),
			}
			if it.Icon == "" {
				if m, ok := d.catalog.Lookup(it.Name); ok {
					it.Icon = m.Icon
				} else {
					it.Icon = menu.UnknownIcon
				}
			}
			items = append(items, it)
		}
		return items
	}
	logger.Warn("unsupported items encoding", zap.String("order_id", string(orderID)))
	return nil
}

// maxItemQuantity caps absurd quantities from hand-edited sheets.
const maxItemQuantity = 10000

// quantity rounds to the nearest whole item and clamps to [0, maxItemQuantity].
func quantity(f flexFloat) int {
	q := math.Round(float64(f))
	switch {
	case math.IsNaN(q), q <= 0:
		return 0
	case q > maxItemQuantity:
		return maxItemQuantity
	}
	return int(q)
}

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/1/2 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unparseable input.
func parseTime(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc)
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
