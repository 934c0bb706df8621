package repository

import (
	"context"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/gorm"
)

// ProfileRepository 用户资料仓储接口
type ProfileRepository interface {
	Save(ctx context.Context, profile *model.ProfileModel) error
	FindByID(ctx context.Context, id string) (*model.ProfileModel, error)
	UpdateEnrollmentStatus(ctx context.Context, id string, status string) error
}

// profileRepository 用户资料仓储实现
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建用户资料仓储
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Save 保存用户资料
func (r *profileRepository) Save(ctx context.Context, profile *model.ProfileModel) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// FindByID 根据 ID 查找用户资料
func (r *profileRepository) FindByID(ctx context.Context, id string) (*model.ProfileModel, error) {
	var profile model.ProfileModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateEnrollmentStatus 同步报名状态镜像字段,资料不存在时返回 gorm.ErrRecordNotFound
func (r *profileRepository) UpdateEnrollmentStatus(ctx context.Context, id string, status string) error {
	result := r.db.WithContext(ctx).Model(&model.ProfileModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enrollment_status": status,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
