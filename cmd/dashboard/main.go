package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/order-dashboard/config"
	"github.com/d60-Lab/order-dashboard/internal/api"
	"github.com/d60-Lab/order-dashboard/internal/api/handler"
	"github.com/d60-Lab/order-dashboard/internal/backend"
	"github.com/d60-Lab/order-dashboard/internal/inflight"
	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/repository"
	"github.com/d60-Lab/order-dashboard/internal/service"
	"github.com/d60-Lab/order-dashboard/internal/stats"
	"github.com/d60-Lab/order-dashboard/internal/store"
	"github.com/d60-Lab/order-dashboard/pkg/database"
	"github.com/d60-Lab/order-dashboard/pkg/logger"
	"github.com/d60-Lab/order-dashboard/pkg/tracing"
)

// @title Order Dashboard API
// @version 1.0
// @description 餐廳訂單管理後台: 訂單列表, 狀態流轉與營業統計
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal("Failed to init logger: ", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Fatal("Failed to init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	loc, _ := cfg.Location()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	audit := repository.NewStatusChangeRepository(db)
	if err := audit.InitSchema(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	defer audit.Close()

	guard, closeGuard := newGuard(cfg)
	defer closeGuard()

	policy, _ := model.ParseTransitionPolicy(cfg.Orders.TransitionPolicy)
	revenue, _ := stats.ParseRevenuePolicy(cfg.Stats.RevenuePolicy)

	client := backend.NewClient(cfg.Backend, catalogFrom(cfg), loc)
	st := store.New(client, store.WithGuard(guard), store.WithPolicy(policy))
	recorder := service.NewAuditRecorder(audit, 1024)
	stopRecorder := recorder.Start(2)
	svc := service.NewDashboardService(st, stats.New(revenue, loc), audit, service.Options{
		TopItems:    cfg.Stats.TopItems,
		RecentLimit: cfg.Stats.RecentLimit,
		Recorder:    recorder,
	})

	if cfg.Orders.LoadOnStart {
		if n, err := svc.Refresh(ctx); err != nil {
			logger.Warn("Initial order load failed", zap.Error(err))
		} else {
			logger.Info("Initial order load", zap.Int("orders", n))
		}
	}

	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}
	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	router := api.NewRouter(handler.NewHandler(svc), api.Options{
		ServiceName: serviceName,
		Sentry:      cfg.Sentry.DSN != "",
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("port", cfg.Server.Port),
			zap.String("backend", cfg.Backend.Endpoint),
			zap.String("revenue_policy", string(revenue)),
			zap.String("transition_policy", string(policy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := stopRecorder(shutdownCtx); err != nil {
		logger.Error("Audit recorder shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newGuard(cfg *config.Config) (inflight.Guard, func()) {
	if cfg.Inflight.Driver != "redis" {
		return inflight.NewMemory(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("Failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return inflight.NewRedis(rdb, cfg.Inflight.TTL), func() { _ = rdb.Close() }
}

func catalogFrom(cfg *config.Config) *menu.Catalog {
	if len(cfg.Menu) == 0 {
		return menu.Default()
	}
	items := make([]model.MenuItem, 0, len(cfg.Menu))
	for _, m := range cfg.Menu {
		items = append(items, model.MenuItem{Name: m.Name, Price: m.Price, Icon: m.Icon})
	}
	return menu.NewCatalog(items)
}
