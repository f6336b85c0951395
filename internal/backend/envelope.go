package backend

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 远端脚本支持的 action
const (
	ActionGetOrders         = "getOrders"
	ActionUpdateOrderStatus = "updateOrderStatus"
	ActionConfirmOrder      = "confirmOrder"
)

// Request is the JSON body posted to the order script.
type Request struct {
	Action     string `json:"action"`
	OrderID    string `json:"orderId,omitempty"`
	Status     string `json:"status,omitempty"`
	AdminNotes string `json:"adminNotes,omitempty"`
}

// Envelope 统一响应 {success, data, message}
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`

	// set when the failure happened below the application protocol
	transport bool
}

func failure(transport bool, format string, args ...interface{}) Envelope {
	return Envelope{Success: false, Message: fmt.Sprintf(format, args...), transport: transport}
}

// ErrRejected matches every failed backend call, whatever the cause.
var ErrRejected = errors.New("order backend request failed")

// Error carries the human readable message of a failure envelope.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *Error) Unwrap() error { return ErrRejected }

func (env Envelope) err(action string) error {
	if env.Success {
		return nil
	}
	msg := env.Message
	if msg == "" {
		msg = "backend returned an error"
	}
	return &Error{Action: action, Message: msg}
}

// StatusAck 状态更新回执
type StatusAck struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}
