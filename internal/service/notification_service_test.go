package service_test

import (
	"context"
	"testing"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNotificationService_Student 学员通知链接与邮件内容
func TestNotificationService_Student(t *testing.T) {
	f := newApprovalFixture(t)
	notifications := repository.NewNotificationRepository(f.db)
	svc := service.NewNotificationService(notifications, f.emails)
	enrollment := &model.EnrollmentModel{ID: "e1", UserID: "u1", ProgramID: "p1"}

	err := svc.NotifyEnrollmentDecision(context.Background(),
		&model.ProfileModel{ID: "u1", Email: "u1@example.com", FullName: "Una"},
		enrollment, service.DecisionApproved, service.AudienceStudent)
	require.NoError(t, err)

	saved, err := notifications.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, service.NotificationTypeEnrollmentDecision, saved[0].Type)
	assert.Equal(t, "/student/enrollments/e1", saved[0].Link)
	assert.Contains(t, saved[0].Message, "learning portal")

	emails := f.emails.sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "Una", emails[0].ToName)
	assert.Equal(t, saved[0].Title, emails[0].Subject)
}

// TestNotificationService_ProgramHolder 项目方通知链接
func TestNotificationService_ProgramHolder(t *testing.T) {
	f := newApprovalFixture(t)
	notifications := repository.NewNotificationRepository(f.db)
	svc := service.NewNotificationService(notifications, f.emails)

	err := svc.NotifyEnrollmentDecision(context.Background(),
		&model.ProfileModel{ID: "holder-contact", Email: "contact@holder.example.com"},
		&model.EnrollmentModel{ID: "e1"}, service.DecisionApproved, service.AudienceProgramHolder)
	require.NoError(t, err)

	saved, err := notifications.FindByUserID(context.Background(), "holder-contact")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "/program-holder/enrollments/e1", saved[0].Link)
}

// TestNotificationService_NoEmail 没有邮箱时保存站内通知并返回错误
func TestNotificationService_NoEmail(t *testing.T) {
	f := newApprovalFixture(t)
	notifications := repository.NewNotificationRepository(f.db)
	svc := service.NewNotificationService(notifications, f.emails)

	err := svc.NotifyEnrollmentDecision(context.Background(),
		&model.ProfileModel{ID: "u1"}, &model.EnrollmentModel{ID: "e1"}, service.DecisionApproved, service.AudienceStudent)
	assert.Error(t, err)

	saved, err := notifications.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Empty(t, f.emails.sent())

	assert.Error(t, svc.NotifyEnrollmentDecision(context.Background(), nil, &model.EnrollmentModel{ID: "e1"}, service.DecisionApproved, service.AudienceStudent))
}
