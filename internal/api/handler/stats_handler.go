package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/order-dashboard/internal/model"
	"github.com/d60-Lab/order-dashboard/internal/stats"
	"github.com/d60-Lab/order-dashboard/pkg/response"
)

// Statistics 营业统计
// @Summary 营业统计
// @Tags 统计
// @Produce json
// @Param range query string false "all|today|this_month|this_year|month" default(all)
// @Param month query string false "range=month 时的月份, 格式 2006-01"
// @Param granularity query string false "day|month" default(day)
// @Param top query int false "热门商品数量, 0 表示全部; 省略时用配置默认值"
// @Success 200 {object} response.Response{data=stats.Report}
// @Failure 400 {object} response.Response
// @Router /api/v1/stats [get]
func (h *Handler) Statistics(c *gin.Context) {
	r, err := stats.ParseRange(c.Query("range"), c.Query("month"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	g, err := stats.ParseGranularity(c.Query("granularity"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q := stats.Query{Range: r, Granularity: g}
	if v := c.Query("top"); v != "" {
		top, err := strconv.Atoi(v)
		if err != nil || top < 0 {
			response.BadRequest(c, "top must be a non-negative integer")
			return
		}
		q.TopItems = top
		if top == 0 {
			q.TopItems = stats.AllItems
		}
	}
	response.Success(c, h.svc.Statistics(c.Request.Context(), q))
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	counts := h.svc.Counts(c.Request.Context())
	response.Success(c, gin.H{"status": "ok", "orders": counts[model.FilterAll]})
}
