package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/order-dashboard/internal/backend"
	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/service"
	"github.com/d60-Lab/order-dashboard/internal/store"
	"github.com/d60-Lab/order-dashboard/pkg/response"
)

// Handler 看板 HTTP 处理器
type Handler struct {
	svc service.DashboardService
}

func NewHandler(svc service.DashboardService) *Handler {
	return &Handler{svc: svc}
}

// RegisterValidators adds the order_status binding tag to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		_, err := model.ParseOrderStatus(fl.Field().String())
		return err == nil
	})
}

// fail maps domain errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEmptyOrderID), errors.Is(err, store.ErrInvalidStatus):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, store.ErrUpdateInFlight),
		errors.Is(err, store.ErrNotPending),
		errors.Is(err, store.ErrTransitionDenied):
		response.Conflict(c, err.Error())
	case errors.Is(err, backend.ErrRejected):
		_ = c.Error(err)
		response.BadGateway(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
