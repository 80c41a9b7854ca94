package handler

import (
	"errors"

	"github.com/wozhendeai/grip-sub002/internal/apperr"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Pagination 分页信息结构
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailFromError 业务错误统一出口，按错误分类映射状态码。
// 歧义提交和余额不足额外携带结构化数据，调用方可以直接重试。
func FailFromError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	var ambiguous *apperr.AmbiguousSubmissionsError
	if errors.As(err, &ambiguous) {
		c.JSON(status, Response{
			Success: false,
			Message: err.Error(),
			Data: gin.H{
				"bounty_id":  ambiguous.BountyID,
				"candidates": ambiguous.Candidates,
			},
		})
		return
	}

	var insufficient *apperr.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		c.JSON(status, Response{
			Success: false,
			Message: err.Error(),
			Data: gin.H{
				"token":     insufficient.Token,
				"balance":   insufficient.Balance.String(),
				"required":  insufficient.Required.String(),
				"shortfall": insufficient.Shortfall.String(),
			},
		})
		return
	}

	ErrorResponse(c, status, err.Error())
}
