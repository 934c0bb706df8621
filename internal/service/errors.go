package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthenticationRequired 未登录
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrPermissionDenied 无权限
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidEnrollmentID 报名 ID 缺失或格式错误
	ErrInvalidEnrollmentID = errors.New("invalid enrollment id")
	// ErrEnrollmentNotFound 报名不存在
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrEnrollmentNotPending 报名不处于待审批状态
	ErrEnrollmentNotPending = errors.New("enrollment is not pending")
	// ErrVerificationRequired 证件未核验
	ErrVerificationRequired = errors.New("document verification required")
)

// NotPendingError 报名状态不是 pending
type NotPendingError struct {
	Status string
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("enrollment is not pending (current status: %s)", e.Status)
}

// Unwrap 支持 errors.Is(err, ErrEnrollmentNotPending)
func (e *NotPendingError) Unwrap() error {
	return ErrEnrollmentNotPending
}

// VerificationError 证件核验未通过
type VerificationError struct {
	Reason              string
	UnverifiedDocuments []string
}

func (e *VerificationError) Error() string {
	if len(e.UnverifiedDocuments) == 0 {
		return fmt.Sprintf("document verification required: %s", e.Reason)
	}
	return fmt.Sprintf("document verification required: %s [%s]", e.Reason, strings.Join(e.UnverifiedDocuments, ", "))
}

// Unwrap 支持 errors.Is(err, ErrVerificationRequired)
func (e *VerificationError) Unwrap() error {
	return ErrVerificationRequired
}
