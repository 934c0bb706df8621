package repository

import (
	"context"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/gorm"
)

// StepRepository 报名步骤与状态历史仓储接口
type StepRepository interface {
	CountByEnrollment(ctx context.Context, enrollmentID string) (int64, error)
	CreateBatch(ctx context.Context, steps []*model.EnrollmentStepModel) error
	FindByEnrollment(ctx context.Context, enrollmentID string) ([]*model.EnrollmentStepModel, error)
	FindHistory(ctx context.Context, enrollmentID string) ([]*model.StatusHistoryModel, error)
}

// stepRepository 报名步骤仓储实现
type stepRepository struct {
	db *gorm.DB
}

// NewStepRepository 创建报名步骤仓储
func NewStepRepository(db *gorm.DB) StepRepository {
	return &stepRepository{db: db}
}

// CountByEnrollment 统计报名已有步骤数量
func (r *stepRepository) CountByEnrollment(ctx context.Context, enrollmentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EnrollmentStepModel{}).
		Where("enrollment_id = ?", enrollmentID).
		Count(&count).Error
	return count, err
}

// CreateBatch 批量创建步骤(单事务)
func (r *stepRepository) CreateBatch(ctx context.Context, steps []*model.EnrollmentStepModel) error {
	if len(steps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&steps).Error
	})
}

// FindByEnrollment 按顺序查找报名步骤
func (r *stepRepository) FindByEnrollment(ctx context.Context, enrollmentID string) ([]*model.EnrollmentStepModel, error) {
	var steps []*model.EnrollmentStepModel
	err := r.db.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).Order("sequence ASC").Find(&steps).Error
	return steps, err
}

// FindHistory 查找报名状态变更历史
func (r *stepRepository) FindHistory(ctx context.Context, enrollmentID string) ([]*model.StatusHistoryModel, error) {
	var history []*model.StatusHistoryModel
	err := r.db.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).Order("created_at ASC").Find(&history).Error
	return history, err
}
