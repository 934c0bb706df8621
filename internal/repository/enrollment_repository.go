package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentRepository 报名仓储接口
type EnrollmentRepository interface {
	Save(ctx context.Context, enrollment *model.EnrollmentModel) error
	FindByID(ctx context.Context, id string) (*model.EnrollmentModel, error)
	FindByFilter(ctx context.Context, filter *EnrollmentFilter) ([]*model.EnrollmentModel, int64, error)
	Activate(ctx context.Context, id string, operator string, at time.Time) (*model.EnrollmentModel, error)
	FindActiveWithoutSteps(ctx context.Context, limit int) ([]*model.EnrollmentModel, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// EnrollmentFilter 报名查询过滤器
type EnrollmentFilter struct {
	Status          *string
	ProgramID       *string
	ProgramHolderID *string
	UserID          *string
	SortBy          string // 调用方需先按白名单校验
	SortOrder       string // ASC / DESC
	Page            int
	PageSize        int
}

// enrollmentRepository 报名仓储实现
type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository 创建报名仓储
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Save 保存报名
func (r *enrollmentRepository) Save(ctx context.Context, enrollment *model.EnrollmentModel) error {
	return r.db.WithContext(ctx).Save(enrollment).Error
}

// FindByID 根据 ID 查找报名
func (r *enrollmentRepository) FindByID(ctx context.Context, id string) (*model.EnrollmentModel, error) {
	var enrollment model.EnrollmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByFilter 根据过滤器分页查找报名
func (r *enrollmentRepository) FindByFilter(ctx context.Context, filter *EnrollmentFilter) ([]*model.EnrollmentModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.EnrollmentModel{})

	page, pageSize := 1, 20
	orderBy := "created_at DESC"
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.ProgramID != nil {
			query = query.Where("program_id = ?", *filter.ProgramID)
		}
		if filter.ProgramHolderID != nil {
			query = query.Where("program_holder_id = ?", *filter.ProgramHolderID)
		}
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 {
			pageSize = filter.PageSize
		}
		if filter.SortBy != "" {
			order := "DESC"
			if filter.SortOrder == "ASC" {
				order = "ASC"
			}
			orderBy = fmt.Sprintf("%s %s", filter.SortBy, order)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	var enrollments []*model.EnrollmentModel
	err := query.Order(orderBy).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&enrollments).Error
	return enrollments, total, err
}

// Activate 将待审批报名置为 active 并开通 LMS 权限,同一事务内写入状态历史
// 更新带 status = pending 条件,未命中时返回 ErrStatusConflict,由调用方重新读取实际状态
func (r *enrollmentRepository) Activate(ctx context.Context, id string, operator string, at time.Time) (*model.EnrollmentModel, error) {
	var activated model.EnrollmentModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.EnrollmentModel{}).
			Where("id = ? AND status = ?", id, model.EnrollmentStatusPending).
			Updates(map[string]interface{}{
				"status":      model.EnrollmentStatusActive,
				"lms_access":  true,
				"approved_at": at,
				"approved_by": operator,
				"updated_at":  at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusConflict
		}

		history := &model.StatusHistoryModel{
			ID:           uuid.New().String(),
			EnrollmentID: id,
			FromStatus:   model.EnrollmentStatusPending,
			ToStatus:     model.EnrollmentStatusActive,
			Reason:       "approved",
			Operator:     operator,
			CreatedAt:    at,
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("failed to save status history: %w", err)
		}

		return tx.Where("id = ?", id).First(&activated).Error
	})
	if err != nil {
		return nil, err
	}

	return &activated, nil
}

// FindActiveWithoutSteps 查找尚未生成步骤的 active 报名
func (r *enrollmentRepository) FindActiveWithoutSteps(ctx context.Context, limit int) ([]*model.EnrollmentModel, error) {
	var enrollments []*model.EnrollmentModel
	err := r.db.WithContext(ctx).
		Where("status = ?", model.EnrollmentStatusActive).
		Where("NOT EXISTS (SELECT 1 FROM enrollment_steps s WHERE s.enrollment_id = enrollments.id)").
		Order("approved_at ASC").
		Limit(limit).
		Find(&enrollments).Error
	return enrollments, err
}

// CountByStatus 按状态统计报名数量
func (r *enrollmentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.EnrollmentModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
