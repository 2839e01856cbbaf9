package response

import "net/http"

// 接口状态码，与 HTTP 状态码一致
const (
	CodeOK                 = http.StatusOK
	CodeCreated            = http.StatusCreated
	CodeBadRequest         = http.StatusBadRequest
	CodeUnauthorized       = http.StatusUnauthorized
	CodeForbidden          = http.StatusForbidden
	CodeNotFound           = http.StatusNotFound
	CodeConflict           = http.StatusConflict
	CodeTooManyRequests    = http.StatusTooManyRequests
	CodeInternal           = http.StatusInternalServerError
	CodeBadGateway         = http.StatusBadGateway
	CodeServiceUnavailable = http.StatusServiceUnavailable
)
