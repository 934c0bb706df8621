package api

import (
	"errors"
	"net/http"

	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/elevateforhumanity/enrollment-gin/internal/utils"
	"github.com/gin-gonic/gin"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HandleServiceError 把服务层错误映射为 HTTP 响应
func HandleServiceError(c *gin.Context, err error) {
	var notPending *service.NotPendingError
	var verification *service.VerificationError
	var validation *utils.ValidationError

	switch {
	case errors.Is(err, service.ErrAuthenticationRequired):
		Error(c, http.StatusUnauthorized, "authentication required", "")
	case errors.Is(err, service.ErrPermissionDenied):
		Error(c, http.StatusForbidden, "permission denied", "admin or super_admin role required")
	case errors.Is(err, service.ErrInvalidEnrollmentID):
		Error(c, http.StatusBadRequest, "invalid enrollment_id", err.Error())
	case errors.As(err, &validation):
		Error(c, http.StatusBadRequest, "invalid request", validation.Message)
	case errors.Is(err, service.ErrEnrollmentNotFound):
		Error(c, http.StatusNotFound, "enrollment not found", "")
	case errors.As(err, &notPending):
		Error(c, http.StatusBadRequest, notPending.Error(), "")
	case errors.As(err, &verification):
		VerificationError(c, verification.Reason, verification.UnverifiedDocuments)
	default:
		// 详情只进日志,不返回给客户端
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "internal server error", "")
	}
}
