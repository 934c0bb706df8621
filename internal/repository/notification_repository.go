package repository

import (
	"context"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository 站内通知仓储接口
type NotificationRepository interface {
	Save(ctx context.Context, notification *model.NotificationModel) error
	FindByUserID(ctx context.Context, userID string) ([]*model.NotificationModel, error)
}

// notificationRepository 站内通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建站内通知仓储
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Save 保存通知
func (r *notificationRepository) Save(ctx context.Context, notification *model.NotificationModel) error {
	if err := notification.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(notification).Error
}

// FindByUserID 根据用户 ID 查找通知
func (r *notificationRepository) FindByUserID(ctx context.Context, userID string) ([]*model.NotificationModel, error) {
	var notifications []*model.NotificationModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&notifications).Error
	return notifications, err
}

// EmailOutboxRepository 邮件发件箱仓储接口
type EmailOutboxRepository interface {
	Save(ctx context.Context, email *model.EmailOutboxModel) error
	FindByID(ctx context.Context, id string) (*model.EmailOutboxModel, error)
	FindPending(ctx context.Context, olderThan time.Time, limit int) ([]*model.EmailOutboxModel, error)
}

// emailOutboxRepository 邮件发件箱仓储实现
type emailOutboxRepository struct {
	db *gorm.DB
}

// NewEmailOutboxRepository 创建邮件发件箱仓储
func NewEmailOutboxRepository(db *gorm.DB) EmailOutboxRepository {
	return &emailOutboxRepository{db: db}
}

// Save 保存邮件
func (r *emailOutboxRepository) Save(ctx context.Context, email *model.EmailOutboxModel) error {
	if err := email.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(email).Error
}

// FindByID 根据 ID 查找邮件
func (r *emailOutboxRepository) FindByID(ctx context.Context, id string) (*model.EmailOutboxModel, error) {
	var email model.EmailOutboxModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		return nil, err
	}
	return &email, nil
}

// FindPending 查找创建时间早于 olderThan 且仍待发送的邮件
func (r *emailOutboxRepository) FindPending(ctx context.Context, olderThan time.Time, limit int) ([]*model.EmailOutboxModel, error) {
	var emails []*model.EmailOutboxModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.EmailStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&emails).Error
	return emails, err
}
