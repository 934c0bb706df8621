package repository

import (
	"context"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/gorm"
)

// ApprenticeRepository 学徒仓储接口
type ApprenticeRepository interface {
	Create(ctx context.Context, apprentice *model.ApprenticeModel) error
	FindByUserID(ctx context.Context, userID string) (*model.ApprenticeModel, error)
	SaveDocument(ctx context.Context, doc *model.ApprenticeDocumentModel) error
	FindDocuments(ctx context.Context, apprenticeID string) ([]*model.ApprenticeDocumentModel, error)
}

// apprenticeRepository 学徒仓储实现
type apprenticeRepository struct {
	db *gorm.DB
}

// NewApprenticeRepository 创建学徒仓储
func NewApprenticeRepository(db *gorm.DB) ApprenticeRepository {
	return &apprenticeRepository{db: db}
}

// Create 创建学徒记录,user_id 冲突时返回 gorm.ErrDuplicatedKey
func (r *apprenticeRepository) Create(ctx context.Context, apprentice *model.ApprenticeModel) error {
	if err := apprentice.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(apprentice).Error
}

// FindByUserID 根据用户 ID 查找学徒记录
func (r *apprenticeRepository) FindByUserID(ctx context.Context, userID string) (*model.ApprenticeModel, error) {
	var apprentice model.ApprenticeModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&apprentice).Error; err != nil {
		return nil, err
	}
	return &apprentice, nil
}

// SaveDocument 保存学徒证件
func (r *apprenticeRepository) SaveDocument(ctx context.Context, doc *model.ApprenticeDocumentModel) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// FindDocuments 查找学徒的全部证件
func (r *apprenticeRepository) FindDocuments(ctx context.Context, apprenticeID string) ([]*model.ApprenticeDocumentModel, error) {
	var docs []*model.ApprenticeDocumentModel
	err := r.db.WithContext(ctx).Where("apprentice_id = ?", apprenticeID).Order("created_at ASC").Find(&docs).Error
	return docs, err
}
