package model

import (
	"errors"
	"time"
)

// 报名状态
const (
	EnrollmentStatusPending   = "pending"
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusWithdrawn = "withdrawn"
)

// EnrollmentModel 报名数据模型
type EnrollmentModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	UserID          string     `gorm:"type:varchar(64);not null;index"`
	ProgramID       string     `gorm:"type:varchar(64);not null;index"`
	ProgramHolderID *string    `gorm:"type:varchar(64);index"` // 可选
	Status          string     `gorm:"type:varchar(32);not null;index"`
	LMSAccess       bool       `gorm:"column:lms_access;not null;default:false"`
	ApprovedAt      *time.Time
	ApprovedBy      string    `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null;index"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EnrollmentModel) TableName() string {
	return "enrollments"
}

// IsPending 是否待审批
func (em *EnrollmentModel) IsPending() bool {
	return em.Status == EnrollmentStatusPending
}

// HolderID 返回项目方 ID,未关联时为空字符串
func (em *EnrollmentModel) HolderID() string {
	if em.ProgramHolderID == nil {
		return ""
	}
	return *em.ProgramHolderID
}

// Validate 验证报名模型
func (em *EnrollmentModel) Validate() error {
	if em.ID == "" {
		return errors.New("enrollment ID is required")
	}
	if em.UserID == "" {
		return errors.New("user ID is required")
	}
	if em.ProgramID == "" {
		return errors.New("program ID is required")
	}
	switch em.Status {
	case EnrollmentStatusPending, EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusWithdrawn:
	default:
		return errors.New("invalid enrollment status")
	}
	return nil
}
