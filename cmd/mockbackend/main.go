package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/internal/mockbackend"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
)

// Serves generated orders over the same action protocol as the real order
// script. MOCK_ADDR (default :8081), MOCK_ORDERS (default 50), MOCK_SEED
// (default: current time), MOCK_ITEMS_AS_STRING=true to send item strings.
func main() {
	if err := logger.Init(env("LOG_LEVEL", "info"), "console"); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	addr := env("MOCK_ADDR", ":8081")
	n, err := strconv.Atoi(env("MOCK_ORDERS", "50"))
	if err != nil || n < 0 {
		logger.Fatal("MOCK_ORDERS must be a non-negative integer")
	}
	seed := time.Now().UnixNano()
	if v := os.Getenv("MOCK_SEED"); v != "" {
		if seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			logger.Fatal("MOCK_SEED must be an integer", zap.Error(err))
		}
	}

	mock := mockbackend.New(mockbackend.Generate(n, rand.New(rand.NewSource(seed)), time.Now()))
	mock.ItemsAsString(os.Getenv("MOCK_ITEMS_AS_STRING") == "true")

	srv := &http.Server{Addr: addr, Handler: mock.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Mock order backend listening", zap.String("addr", addr), zap.Int("orders", n), zap.Int64("seed", seed))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Mock backend failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
