package model

import (
	"time"
)

// MenuItem 菜单项
type MenuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Icon  string  `json:"icon"`
}

// OrderItem 订单明细
type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Icon     string  `json:"icon"`
}

// Subtotal 单价 x 数量
func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Order 订单模型
type Order struct {
	OrderID         string      `json:"order_id"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	PickupTime      time.Time   `json:"pickup_time"`
	DeliveryAddress string      `json:"delivery_address"`
	Notes           string      `json:"notes"`
	AdminNotes      string      `json:"admin_notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ConfirmedAt     *time.Time  `json:"confirmed_at,omitempty"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

// IsDelivery 有外送地址即外送, 否则自取
func (o Order) IsDelivery() bool {
	return o.DeliveryAddress != ""
}

// ItemsTotal recomputes the total from line items. Display only: revenue
// statistics trust TotalAmount as sent by the backend.
func (o Order) ItemsTotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.Subtotal()
	}
	return sum
}

// Clone 深拷贝, 用于对外快照
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.ConfirmedAt != nil {
		t := *o.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}
