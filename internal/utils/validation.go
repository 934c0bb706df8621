package utils

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator 返回共享的校验器,注册了 entity_id 规则
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
			return idPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateEnrollmentID 验证报名 ID 格式
// 只允许字母、数字、连字符、下划线,最长 64 字符
func ValidateEnrollmentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if err := Validator().Var(id, "max=64"); err != nil {
		return ErrIDTooLong
	}
	if err := Validator().Var(id, "entity_id"); err != nil {
		return ErrInvalidIDFormat
	}
	return nil
}

// ValidateEnrollmentStatus 验证报名状态取值
func ValidateEnrollmentStatus(status string) error {
	if err := Validator().Var(status, "oneof=pending active completed withdrawn"); err != nil {
		return ErrInvalidStatus
	}
	return nil
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrInvalidStatus   = &ValidationError{Code: "INVALID_STATUS", Message: "status must be one of pending, active, completed, withdrawn"}
	ErrInvalidSort     = &ValidationError{Code: "INVALID_SORT", Message: "sort field is not allowed"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
