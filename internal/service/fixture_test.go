package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/database"
	"github.com/elevateforhumanity/enrollment-gin/internal/integration"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/elevateforhumanity/enrollment-gin/internal/verification"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recordingDispatcher 记录入队邮件,不启动 worker
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []*integration.EmailMessage
	requeued []string
	err      error
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, msg *integration.EmailMessage) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.messages = append(d.messages, msg)
	return uuid.New().String(), nil
}

func (d *recordingDispatcher) Requeue(email *model.EmailOutboxModel) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requeued = append(d.requeued, email.ID)
	return true
}

func (d *recordingDispatcher) Stop() {}

func (d *recordingDispatcher) sent() []*integration.EmailMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*integration.EmailMessage(nil), d.messages...)
}

// approvalFixture 基于内存 SQLite 的审批服务测试夹具
type approvalFixture struct {
	db          *gorm.DB
	enrollments repository.EnrollmentRepository
	profiles    repository.ProfileRepository
	apprentices repository.ApprenticeRepository
	programs    repository.ProgramRepository
	steps       repository.StepRepository
	emails      *recordingDispatcher
	deps        service.ApprovalDependencies
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	logger, _ := test.NewNullLogger()
	f := &approvalFixture{
		db:          db,
		enrollments: repository.NewEnrollmentRepository(db),
		profiles:    repository.NewProfileRepository(db),
		apprentices: repository.NewApprenticeRepository(db),
		programs:    repository.NewProgramRepository(db),
		steps:       repository.NewStepRepository(db),
		emails:      &recordingDispatcher{},
	}
	f.deps = service.ApprovalDependencies{
		Enrollments:          f.enrollments,
		Profiles:             f.profiles,
		Apprentices:          f.apprentices,
		Programs:             f.programs,
		Verifier:             verification.NewDBVerifier(f.apprentices, []string{model.DocumentTypePhotoID}),
		Steps:                service.NewNativeStepGenerator(f.enrollments, f.programs, f.steps),
		AuditLogs:            service.NewAuditLogService(repository.NewAuditLogRepository(db)),
		Notifications:        service.NewNotificationService(repository.NewNotificationRepository(db), f.emails),
		Policy:               auth.DefaultPolicy(),
		DefaultRequiredHours: 2000,
		Logger:               logger,
	}
	return f
}

func (f *approvalFixture) service() service.EnrollmentApprovalService {
	return service.NewEnrollmentApprovalService(f.deps)
}

// seed 写入学员 u1、项目 p1 (1500 学时)、项目方 h1 及其联系人,以及报名 e1
func (f *approvalFixture) seed(t *testing.T, status string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	hours := 1500

	require.NoError(t, f.profiles.Save(ctx, &model.ProfileModel{
		ID: "u1", Email: "u1@example.com", FullName: "Una Student", Role: model.RoleStudent,
		EnrollmentStatus: model.EnrollmentStatusPending, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.profiles.Save(ctx, &model.ProfileModel{
		ID: "holder-contact", Email: "contact@holder.example.com", Role: model.RoleProgramHolder, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.programs.Save(ctx, &model.ProgramModel{
		ID: "p1", Name: "Barber Apprenticeship", TotalHours: &hours, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.programs.SaveHolder(ctx, &model.ProgramHolderModel{
		ID: "h1", Name: "Main Street Barbers", ContactUserID: "holder-contact", CreatedAt: now, UpdatedAt: now,
	}))
	f.seedEnrollment(t, "e1", "u1", status, "h1")
}

func (f *approvalFixture) seedEnrollment(t *testing.T, id, userID, status, holderID string) {
	t.Helper()
	now := time.Now()
	enrollment := &model.EnrollmentModel{
		ID: id, UserID: userID, ProgramID: "p1", Status: status, CreatedAt: now, UpdatedAt: now,
	}
	if holderID != "" {
		enrollment.ProgramHolderID = &holderID
	}
	require.NoError(t, f.enrollments.Save(context.Background(), enrollment))
}

// seedApprentice 为 u1 创建学徒记录及 photo_id 证件
func (f *approvalFixture) seedApprentice(t *testing.T, photoVerified bool) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, f.apprentices.Create(ctx, &model.ApprenticeModel{
		ID: "a1", UserID: "u1", ProgramID: "p1", TotalHoursRequired: 1000,
		Status: model.ApprenticeStatusActive, StartDate: now, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.apprentices.SaveDocument(ctx, &model.ApprenticeDocumentModel{
		ID: "d1", ApprenticeID: "a1", DocumentType: model.DocumentTypePhotoID, Verified: photoVerified, CreatedAt: now,
	}))
}

func (f *approvalFixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

// snapshot 记录会被审批修改的各表行数与报名状态
type snapshot struct {
	status        string
	history       int64
	steps         int64
	audits        int64
	notifications int64
	apprentices   int64
	profileStatus string
}

func (f *approvalFixture) snapshot(t *testing.T, enrollmentID, userID string) snapshot {
	t.Helper()
	s := snapshot{
		history:       f.count(t, &model.StatusHistoryModel{}),
		steps:         f.count(t, &model.EnrollmentStepModel{}),
		audits:        f.count(t, &model.AuditLogModel{}),
		notifications: f.count(t, &model.NotificationModel{}),
		apprentices:   f.count(t, &model.ApprenticeModel{}),
	}
	if e, err := f.enrollments.FindByID(context.Background(), enrollmentID); err == nil {
		s.status = e.Status
	}
	if p, err := f.profiles.FindByID(context.Background(), userID); err == nil {
		s.profileStatus = p.EnrollmentStatus
	}
	return s
}

func callerCtx(userID string, roles ...string) context.Context {
	return auth.WithCaller(context.Background(), &auth.Caller{UserID: userID, Roles: roles})
}

func adminCtx() context.Context {
	return callerCtx("admin-1", model.RoleAdmin)
}

func stepTemplate(t *testing.T, titles ...string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(titles)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}
