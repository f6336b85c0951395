package inflight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

// delete the key only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares the guard across dashboard replicas. The TTL frees slots held
// by a replica that died mid-request.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl, prefix: "dashboard:inflight:"}
}

func (r *Redis) key(orderID string) string { return r.prefix + orderID }

func (r *Redis) Acquire(ctx context.Context, orderID string) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key(orderID), token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight acquire %s: %w", orderID, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be done
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key(orderID)}, token).Err(); err != nil {
				logger.Warn("inflight release failed", zap.String("order_id", orderID), zap.Error(err))
			}
		})
	}, nil
}
