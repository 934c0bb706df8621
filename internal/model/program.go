package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ProgramModel 培训项目数据模型
type ProgramModel struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)"`
	Name         string         `gorm:"type:varchar(255);not null"`
	TotalHours   *int           // 学徒所需总学时,为空时使用默认值
	StepTemplate datatypes.JSON // 报名步骤标题列表,如 ["Orientation", "Upload documents"]
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (ProgramModel) TableName() string {
	return "programs"
}

// StepTitles 解析步骤模板
func (pm *ProgramModel) StepTitles() ([]string, error) {
	if len(pm.StepTemplate) == 0 {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(pm.StepTemplate, &titles); err != nil {
		return nil, err
	}
	return titles, nil
}

// ProgramHolderModel 项目方(合作机构)数据模型
type ProgramHolderModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	Name          string    `gorm:"type:varchar(255);not null"`
	ContactUserID string    `gorm:"type:varchar(64);index"` // 机构联系人的 profile ID
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ProgramHolderModel) TableName() string {
	return "program_holders"
}
