package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/order-dashboard/config"
	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/order-dashboard/internal/backend")

// Client 远端订单脚本客户端
type Client struct {
	http     *resty.Client
	endpoint string
	limiter  *rate.Limiter
	retries  int
	dec      decoder
}

// NewClient builds a client for the order script at cfg.Endpoint. Item
// strings are resolved through catalog and naive timestamps are read in loc.
func NewClient(cfg config.BackendConfig, catalog *menu.Catalog, loc *time.Location) *Client {
	if catalog == nil {
		catalog = menu.Default()
	}
	if loc == nil {
		loc = time.Local
	}

	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		// text/plain avoids a CORS preflight on script hosts
		SetHeader("Content-Type", "text/plain;charset=utf-8").
		SetHeader("Accept", "application/json")

	c := &Client{
		http:     hc,
		endpoint: cfg.Endpoint,
		retries:  cfg.Retries,
		dec:      decoder{catalog: catalog, loc: loc},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Call posts one action and always returns an envelope: transport problems
// (connection errors, timeouts, non-2xx, malformed JSON) become failure
// envelopes carrying a readable message.
func (c *Client) Call(ctx context.Context, req Request) Envelope {
	ctx, span := tracer.Start(ctx, "backend."+req.Action, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("backend.action", req.Action))
	if req.OrderID != "" {
		span.SetAttributes(attribute.String("order.id", req.OrderID))
	}

	env := c.do(ctx, req)
	if !env.Success {
		span.SetStatus(codes.Error, env.Message)
		logger.Warn("backend call failed",
			zap.String("action", req.Action),
			zap.String("order_id", req.OrderID),
			zap.Bool("transport", env.transport),
			zap.String("message", env.Message))
	}
	return env
}

func (c *Client) do(ctx context.Context, req Request) Envelope {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failure(true, "rate limiter: %v", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return failure(true, "encode request: %v", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return failure(true, "request failed: %v", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return failure(true, "HTTP error! status: %d. Response: %s", code, truncate(resp.String(), 256))
	}

	var env Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return failure(true, "malformed response: %v", err)
	}
	return env
}

// FetchOrders 获取全部订单
func (c *Client) FetchOrders(ctx context.Context) ([]model.Order, error) {
	var env Envelope
	for attempt := 0; ; attempt++ {
		env = c.Call(ctx, Request{Action: ActionGetOrders})
		if env.Success || !env.transport || attempt >= c.retries || ctx.Err() != nil {
			break
		}
		logger.Info("retrying getOrders", zap.Int("attempt", attempt+1))
	}
	if err := env.err(ActionGetOrders); err != nil {
		return nil, err
	}

	var raw []wireOrder
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, &Error{Action: ActionGetOrders, Message: fmt.Sprintf("malformed order list: %v", err)}
		}
	}

	orders := make([]model.Order, 0, len(raw))
	for _, w := range raw {
		orders = append(orders, c.dec.order(w))
	}
	return orders, nil
}

// SetOrderStatus 更新订单状态
func (c *Client) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (StatusAck, error) {
	env := c.Call(ctx, Request{Action: ActionUpdateOrderStatus, OrderID: orderID, Status: string(status)})
	if err := env.err(ActionUpdateOrderStatus); err != nil {
		return StatusAck{}, err
	}

	ack := StatusAck{OrderID: orderID, Status: string(status)}
	if len(env.Data) > 0 {
		var data struct {
			OrderID flexString `json:"orderId"`
			Status  flexString `json:"status"`
		}
		if json.Unmarshal(env.Data, &data) == nil {
			if data.OrderID != "" {
				ack.OrderID = string(data.OrderID)
			}
			if data.Status != "" {
				ack.Status = string(data.Status)
			}
		}
	}
	return ack, nil
}

// ConfirmOrder 确认订单并附带店家备注, 返回后端消息
func (c *Client) ConfirmOrder(ctx context.Context, orderID, adminNotes string) (string, error) {
	env := c.Call(ctx, Request{Action: ActionConfirmOrder, OrderID: orderID, AdminNotes: adminNotes})
	if err := env.err(ActionConfirmOrder); err != nil {
		return "", err
	}

	msg := env.Message
	if len(env.Data) > 0 {
		var data struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Data, &data) == nil && data.Message != "" {
			msg = data.Message
		}
	}
	return msg, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
