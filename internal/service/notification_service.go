package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/integration"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/google/uuid"
)

// 通知对象
const (
	AudienceStudent       = "student"
	AudienceProgramHolder = "program_holder"
)

// DecisionApproved 审批通过
const DecisionApproved = "approved"

// NotificationTypeEnrollmentDecision 报名审批结果通知类型
const NotificationTypeEnrollmentDecision = "enrollment_decision"

// NotificationService 通知服务
type NotificationService interface {
	// NotifyEnrollmentDecision 写入站内通知并投递邮件
	NotifyEnrollmentDecision(ctx context.Context, recipient *model.ProfileModel, enrollment *model.EnrollmentModel, decision string, audience string) error
}

// notificationService 通知服务实现
type notificationService struct {
	notifications repository.NotificationRepository
	emails        integration.EmailDispatcher
}

// NewNotificationService 创建通知服务
func NewNotificationService(notifications repository.NotificationRepository, emails integration.EmailDispatcher) NotificationService {
	return &notificationService{
		notifications: notifications,
		emails:        emails,
	}
}

// NotifyEnrollmentDecision 站内通知失败时不再发送邮件
func (s *notificationService) NotifyEnrollmentDecision(
	ctx context.Context,
	recipient *model.ProfileModel,
	enrollment *model.EnrollmentModel,
	decision string,
	audience string,
) error {
	if recipient == nil {
		return errors.New("notification recipient is required")
	}

	title, message, link := decisionContent(enrollment, decision, audience)
	metadata, err := json.Marshal(map[string]string{
		"enrollment_id": enrollment.ID,
		"program_id":    enrollment.ProgramID,
		"decision":      decision,
		"audience":      audience,
	})
	if err != nil {
		return err
	}

	notification := &model.NotificationModel{
		ID:        uuid.New().String(),
		UserID:    recipient.ID,
		Type:      NotificationTypeEnrollmentDecision,
		Title:     title,
		Message:   message,
		Link:      link,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.notifications.Save(ctx, notification); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	if recipient.Email == "" {
		return fmt.Errorf("profile %s has no email address", recipient.ID)
	}
	if _, err := s.emails.Enqueue(ctx, &integration.EmailMessage{
		ToAddress: recipient.Email,
		ToName:    recipient.FullName,
		Template:  integration.TemplateEnrollmentDecision,
		Subject:   title,
		Data: map[string]interface{}{
			"decision":      decision,
			"enrollment_id": enrollment.ID,
			"audience":      audience,
		},
	}); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

func decisionContent(enrollment *model.EnrollmentModel, decision string, audience string) (string, string, string) {
	if audience == AudienceProgramHolder {
		return fmt.Sprintf("Enrollment %s", decision),
			fmt.Sprintf("An enrollment in your program was %s.", decision),
			fmt.Sprintf("/program-holder/enrollments/%s", enrollment.ID)
	}
	message := fmt.Sprintf("Your enrollment was %s.", decision)
	if decision == DecisionApproved {
		message += " You now have access to your learning portal."
	}
	return fmt.Sprintf("Your enrollment was %s", decision), message,
		fmt.Sprintf("/student/enrollments/%s", enrollment.ID)
}
