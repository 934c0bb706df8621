package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 邮件投递状态
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailOutboxModel 待发送邮件数据模型
type EmailOutboxModel struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	ToAddress  string         `gorm:"type:varchar(255);not null"`
	ToName     string         `gorm:"type:varchar(255)"`
	Template   string         `gorm:"type:varchar(64);not null;index"`
	Subject    string         `gorm:"type:varchar(255);not null"`
	Data       datatypes.JSON // 模板变量
	Status     string         `gorm:"type:varchar(32);not null;default:'pending';index"` // pending/sent/failed
	RetryCount int            `gorm:"type:int;default:0"`
	LastError  string         `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"not null;index"`
	UpdatedAt  time.Time      `gorm:"not null"`
	SentAt     *time.Time
}

// TableName 指定表名
func (EmailOutboxModel) TableName() string {
	return "email_outbox"
}

// Validate 验证邮件模型
func (em *EmailOutboxModel) Validate() error {
	if em.ID == "" {
		return errors.New("email ID is required")
	}
	if em.ToAddress == "" {
		return errors.New("recipient address is required")
	}
	if em.Template == "" {
		return errors.New("template is required")
	}
	if em.Status == "" {
		em.Status = EmailStatusPending
	}
	return nil
}
