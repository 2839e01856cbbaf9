package response

import (
	"github.com/gin-gonic/gin"
)

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// NewPagination 计算总页数
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPage: totalPage}
}

// JSON 原样输出载荷
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Success 成功响应：{success: true, ...payload}
func Success(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	c.JSON(status, body)
}

// Created 201 成功响应
func Created(c *gin.Context, payload gin.H) {
	Success(c, CodeCreated, payload)
}

// OK 200 成功响应
func OK(c *gin.Context, payload gin.H) {
	Success(c, CodeOK, payload)
}

// Error 错误响应：{success: false, message, request_id}
func Error(c *gin.Context, status int, msg string) {
	ErrorWithDebug(c, status, msg, "")
}

// ErrorWithDebug 错误响应，debug 非空时附带诊断信息
func ErrorWithDebug(c *gin.Context, status int, msg, debug string) {
	body := attachRequestID(c, gin.H{
		"success": false,
		"message": msg,
	})
	if debug != "" {
		body["debug"] = debug
	}
	c.AbortWithStatusJSON(status, body)
}

// NotFound 404响应
func NotFound(c *gin.Context, msg string) {
	Error(c, CodeNotFound, msg)
}

// Unauthorized 401响应
func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

// Forbidden 403响应
func Forbidden(c *gin.Context, msg string) {
	Error(c, CodeForbidden, msg)
}

// BadRequest 400响应
func BadRequest(c *gin.Context, msg string) {
	Error(c, CodeBadRequest, msg)
}

func attachRequestID(c *gin.Context, body gin.H) gin.H {
	if c == nil {
		return body
	}
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok && id != "" {
			if _, exists := body["request_id"]; !exists {
				body["request_id"] = id
			}
		}
	}
	return body
}

// ErrorWithFields 错误响应，附带额外字段
func ErrorWithFields(c *gin.Context, status int, msg string, fields gin.H) {
	body := attachRequestID(c, gin.H{
		"success": false,
		"message": msg,
	})
	for key, value := range fields {
		if _, reserved := body[key]; !reserved {
			body[key] = value
		}
	}
	c.AbortWithStatusJSON(status, body)
}
