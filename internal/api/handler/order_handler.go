package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/pkg/response"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

type confirmRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=500"`
}

// ListOrders 订单列表
// @Summary 查询订单列表
// @Tags 订单
// @Produce json
// @Param status query string false "状态过滤: all|pending|confirmed|preparing|ready|completed|cancelled" default(all)
// @Success 200 {object} response.Response{data=service.OrderList}
// @Failure 400 {object} response.Response
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	filter, err := model.ParseStatusFilter(c.DefaultQuery("status", string(model.FilterAll)))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, h.svc.ListOrders(c.Request.Context(), filter))
}

// GetOrder 订单详情
// @Summary 查询单个订单
// @Tags 订单
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, o)
}

// History 状态变更历史
// @Summary 查询订单状态变更历史
// @Tags 订单
// @Produce json
// @Param id path string true "订单ID"
// @Param limit query int false "条数" default(50)
// @Success 200 {object} response.Response{data=[]model.StatusChange}
// @Failure 500 {object} response.Response
// @Router /api/v1/orders/{id}/history [get]
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.svc.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// Refresh 重新拉取订单
// @Summary 从订单后端重新加载全部订单
// @Tags 订单
// @Produce json
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 502 {object} response.Response
// @Router /api/v1/orders/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	list := h.svc.ListOrders(c.Request.Context(), model.FilterAll)
	response.Success(c, gin.H{"count": n, "counts": list.Counts, "loaded_at": list.LoadedAt})
}

// UpdateStatus 更新订单状态
// @Summary 更新订单状态
// @Tags 订单
// @Accept json
// @Produce json
// @Param id path string true "订单ID"
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=store.Change}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/orders/{id}/status [put]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	status, _ := model.ParseOrderStatus(req.Status)
	ch, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, ch)
}

// ConfirmOrder 确认订单
// @Summary 确认待处理订单并附加店家备注
// @Tags 订单
// @Accept json
// @Produce json
// @Param id path string true "订单ID"
// @Param request body confirmRequest false "店家备注"
// @Success 200 {object} response.Response{data=store.Change}
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/orders/{id}/confirm [post]
func (h *Handler) ConfirmOrder(c *gin.Context) {
	var req confirmRequest
	// an empty body, chunked or not, means no notes
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}
	ch, err := h.svc.ConfirmOrder(c.Request.Context(), c.Param("id"), req.AdminNotes)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, ch)
}
