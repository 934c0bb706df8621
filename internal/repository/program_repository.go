package repository

import (
	"context"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/gorm"
)

// ProgramRepository 培训项目与项目方仓储接口
type ProgramRepository interface {
	Save(ctx context.Context, program *model.ProgramModel) error
	FindByID(ctx context.Context, id string) (*model.ProgramModel, error)
	SaveHolder(ctx context.Context, holder *model.ProgramHolderModel) error
	FindHolderByID(ctx context.Context, id string) (*model.ProgramHolderModel, error)
}

// programRepository 培训项目仓储实现
type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository 创建培训项目仓储
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

// Save 保存培训项目
func (r *programRepository) Save(ctx context.Context, program *model.ProgramModel) error {
	return r.db.WithContext(ctx).Save(program).Error
}

// FindByID 根据 ID 查找培训项目
func (r *programRepository) FindByID(ctx context.Context, id string) (*model.ProgramModel, error) {
	var program model.ProgramModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// SaveHolder 保存项目方
func (r *programRepository) SaveHolder(ctx context.Context, holder *model.ProgramHolderModel) error {
	return r.db.WithContext(ctx).Save(holder).Error
}

// FindHolderByID 根据 ID 查找项目方
func (r *programRepository) FindHolderByID(ctx context.Context, id string) (*model.ProgramHolderModel, error) {
	var holder model.ProgramHolderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&holder).Error; err != nil {
		return nil, err
	}
	return &holder, nil
}
