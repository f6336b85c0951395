package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/order-dashboard/docs"
	"github.com/d60-Lab/order-dashboard/internal/api/handler"
	"github.com/d60-Lab/order-dashboard/internal/api/middleware"
)

// Options 路由可选组件
type Options struct {
	ServiceName string // otelgin span names; empty disables tracing middleware
	Sentry      bool
	Swagger     bool
}

// NewRouter 注册中间件与路由
func NewRouter(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		orders.GET("", h.ListOrders)
		orders.POST("/refresh", h.Refresh)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/history", h.History)
		orders.PUT("/:id/status", h.UpdateStatus)
		orders.POST("/:id/confirm", h.ConfirmOrder)

		v1.GET("/stats", h.Statistics)
	}
	return r
}
