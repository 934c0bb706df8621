package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// NotificationModel 站内通知数据模型
type NotificationModel struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)"`
	UserID    string         `gorm:"type:varchar(64);not null;index"`
	Type      string         `gorm:"type:varchar(64);not null"` // enrollment_approved, ...
	Title     string         `gorm:"type:varchar(255);not null"`
	Message   string         `gorm:"type:text"`
	Link      string         `gorm:"type:varchar(255)"`
	Metadata  datatypes.JSON
	Read      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// Validate 验证通知模型
func (nm *NotificationModel) Validate() error {
	if nm.ID == "" {
		return errors.New("notification ID is required")
	}
	if nm.UserID == "" {
		return errors.New("user ID is required")
	}
	if nm.Title == "" {
		return errors.New("title is required")
	}
	return nil
}
