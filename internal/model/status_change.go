package model

import "time"

// StatusChange 订单状态变更审计记录
type StatusChange struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string      `json:"order_id" gorm:"type:varchar(64);index:idx_status_change_order;not null"`
	FromStatus OrderStatus `json:"from_status" gorm:"type:varchar(16)"` // empty when the order was not loaded locally
	ToStatus   OrderStatus `json:"to_status" gorm:"type:varchar(16);not null"`
	AdminNotes string      `json:"admin_notes,omitempty" gorm:"type:text"`
	RequestID  string      `json:"request_id,omitempty" gorm:"type:varchar(36)"`
	ChangedAt  time.Time   `json:"changed_at" gorm:"index:idx_status_change_order;not null"`
}

// TableName 指定表名
func (StatusChange) TableName() string {
	return "order_status_changes"
}
