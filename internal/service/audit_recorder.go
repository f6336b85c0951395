package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/repository"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

// AuditRecorder 异步写入状态变更审计
type AuditRecorder struct {
	repo repository.StatusChangeRepository
	ch   chan *model.StatusChange

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAuditRecorder(repo repository.StatusChangeRepository, queueSize int) *AuditRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AuditRecorder{repo: repo, ch: make(chan *model.StatusChange, queueSize)}
}

// Start runs the workers and returns a stop function that drains the queue
// or gives up when ctx ends.
func (r *AuditRecorder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for change := range r.ch {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := r.repo.Create(ctx, change); err != nil {
					reportAuditFailure(ctx, change, err)
				}
				cancel()
			}
		}()
	}

	return func(ctx context.Context) error {
		r.mu.Lock()
		if !r.closed {
			r.closed = true
			close(r.ch)
		}
		r.mu.Unlock()

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			logger.Warn("audit queue not drained", zap.Int("pending", len(r.ch)))
			return ctx.Err()
		}
	}
}

// Enqueue reports false when the queue is full or stopped; the caller then
// writes synchronously.
func (r *AuditRecorder) Enqueue(change *model.StatusChange) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- change:
		return true
	default:
		logger.Warn("audit queue full, writing inline", zap.String("order_id", change.OrderID))
		return false
	}
}

// QueueLen 当前队列长度（采样值）
func (r *AuditRecorder) QueueLen() int { return len(r.ch) }
