package model

import (
	"errors"
	"time"
)

// 用户角色
const (
	RoleStudent       = "student"
	RoleProgramHolder = "program_holder"
	RoleEmployer      = "employer"
	RoleAdmin         = "admin"
	RoleSuperAdmin    = "super_admin"
)

// ProfileModel 用户资料数据模型
// EnrollmentStatus 是报名状态的镜像,由审批流程同步,不在同一事务内
type ProfileModel struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	Email            string    `gorm:"type:varchar(255);index"`
	FullName         string    `gorm:"type:varchar(255)"`
	Role             string    `gorm:"type:varchar(32);not null;default:'student'"`
	EnrollmentStatus string    `gorm:"type:varchar(32)"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ProfileModel) TableName() string {
	return "profiles"
}

// Validate 验证用户资料模型
func (pm *ProfileModel) Validate() error {
	if pm.ID == "" {
		return errors.New("profile ID is required")
	}
	return nil
}
