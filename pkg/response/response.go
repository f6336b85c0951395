package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string) { Error(c, http.StatusBadRequest, message) }

func NotFound(c *gin.Context, message string) { Error(c, http.StatusNotFound, message) }

func Conflict(c *gin.Context, message string) { Error(c, http.StatusConflict, message) }

// BadGateway 上游订单服务失败
func BadGateway(c *gin.Context, message string) { Error(c, http.StatusBadGateway, message) }

func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, err.Error())
}
