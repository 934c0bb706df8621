package model

import "time"

// 步骤状态
const (
	StepStatusPending   = "pending"
	StepStatusCompleted = "completed"
)

// EnrollmentStepModel 报名步骤(清单项)数据模型
type EnrollmentStepModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	EnrollmentID string    `gorm:"type:varchar(64);not null;index"`
	Sequence     int       `gorm:"not null"`
	Title        string    `gorm:"type:varchar(255);not null"`
	Status       string    `gorm:"type:varchar(32);not null;default:'pending'"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EnrollmentStepModel) TableName() string {
	return "enrollment_steps"
}

// DefaultEnrollmentSteps 项目未配置步骤模板时使用的默认清单
var DefaultEnrollmentSteps = []string{
	"Complete orientation",
	"Upload identification documents",
	"Sign training agreement",
	"Schedule first training session",
	"Access learning portal",
}
