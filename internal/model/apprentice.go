package model

import (
	"errors"
	"time"
)

// ApprenticeStatusActive 学徒在训
const ApprenticeStatusActive = "active"

// ApprenticeModel 学徒数据模型,记录在岗培训 (OJT) 学时
type ApprenticeModel struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)"`
	UserID             string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	ProgramID          string    `gorm:"type:varchar(64);index"`
	EnrollmentID       string    `gorm:"type:varchar(64);index"`
	TotalHoursRequired int       `gorm:"not null"`
	HoursCompleted     float64   `gorm:"not null;default:0"`
	Status             string    `gorm:"type:varchar(32);not null;default:'active'"`
	StartDate          time.Time `gorm:"not null"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ApprenticeModel) TableName() string {
	return "apprentices"
}

// Validate 验证学徒模型
func (am *ApprenticeModel) Validate() error {
	if am.ID == "" {
		return errors.New("apprentice ID is required")
	}
	if am.UserID == "" {
		return errors.New("user ID is required")
	}
	if am.TotalHoursRequired <= 0 {
		return errors.New("total hours required must be positive")
	}
	return nil
}

// DocumentTypePhotoID 默认必需证件
const DocumentTypePhotoID = "photo_id"

// ApprenticeDocumentModel 学徒证件数据模型
type ApprenticeDocumentModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)"`
	ApprenticeID string     `gorm:"type:varchar(64);not null;index"`
	DocumentType string     `gorm:"type:varchar(64);not null"` // photo_id, ssn_card, ...
	Verified     bool       `gorm:"not null;default:false"`
	VerifiedAt   *time.Time
	VerifiedBy   string    `gorm:"type:varchar(64)"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ApprenticeDocumentModel) TableName() string {
	return "apprentice_documents"
}
