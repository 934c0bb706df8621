package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/metrics"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/utils"
	"github.com/elevateforhumanity/enrollment-gin/internal/verification"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 审计操作与资源类型
const (
	AuditActionApproveEnrollment = "approve_enrollment"
	AuditResourceEnrollment      = "enrollment"
)

// 后续步骤名称
const (
	TaskProfileMirror         = "profile_mirror"
	TaskApprenticeRecord      = "apprentice_record"
	TaskEnrollmentSteps       = "enrollment_steps"
	TaskAuditLog              = "audit_log"
	TaskStudentNotification   = "student_notification"
	TaskProgramHolderNotifier = "program_holder_notification"
)

// EnrollmentSummary 审批结果中的报名摘要
type EnrollmentSummary struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	UserID    string `json:"user_id"`
	ProgramID string `json:"program_id"`
}

// ProfileSummary 审批结果中的资料摘要
type ProfileSummary struct {
	ID               string `json:"id"`
	EnrollmentStatus string `json:"enrollment_status"`
}

// ApproveResult 审批结果
type ApproveResult struct {
	Enrollment          EnrollmentSummary `json:"enrollment"`
	Profile             ProfileSummary    `json:"profile"`
	StepsGeneratedCount int               `json:"stepsGeneratedCount"`
	Followups           []Outcome         `json:"followups"`
}

// EnrollmentApprovalService 报名审批服务
type EnrollmentApprovalService interface {
	Approve(ctx context.Context, enrollmentID string) (*ApproveResult, error)
}

// ApprovalDependencies 审批服务依赖
type ApprovalDependencies struct {
	Enrollments          repository.EnrollmentRepository
	Profiles             repository.ProfileRepository
	Apprentices          repository.ApprenticeRepository
	Programs             repository.ProgramRepository
	Verifier             verification.Verifier
	Steps                StepGenerator
	AuditLogs            AuditLogService
	Notifications        NotificationService
	Policy               *auth.Policy
	DefaultRequiredHours int
	Logger               logrus.FieldLogger
}

// enrollmentApprovalService 审批服务实现
type enrollmentApprovalService struct {
	deps   ApprovalDependencies
	logger logrus.FieldLogger
}

// NewEnrollmentApprovalService 创建审批服务
func NewEnrollmentApprovalService(deps ApprovalDependencies) EnrollmentApprovalService {
	if deps.Policy == nil {
		deps.Policy = auth.DefaultPolicy()
	}
	if deps.DefaultRequiredHours <= 0 {
		deps.DefaultRequiredHours = 2000
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &enrollmentApprovalService{
		deps:   deps,
		logger: logger.WithField("component", "enrollment_approval"),
	}
}

// Approve 审批报名
// 前置检查与状态切换失败时直接返回错误;之后的步骤逐个兜底,结果写入 Followups
func (s *enrollmentApprovalService) Approve(ctx context.Context, enrollmentID string) (*ApproveResult, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		metrics.RecordApproval("unauthenticated")
		return nil, ErrAuthenticationRequired
	}
	if !s.deps.Policy.Allow(caller.Roles, auth.ActionApproveEnrollment) {
		metrics.RecordApproval("denied")
		s.logger.WithFields(logrus.Fields{
			"user_id":       caller.UserID,
			"roles":         caller.Roles,
			"enrollment_id": enrollmentID,
		}).Warn("approval denied by policy")
		return nil, ErrPermissionDenied
	}
	if err := utils.ValidateEnrollmentID(enrollmentID); err != nil {
		metrics.RecordApproval("invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnrollmentID, err)
	}

	enrollment, err := s.deps.Enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.RecordApproval("not_found")
			return nil, ErrEnrollmentNotFound
		}
		metrics.RecordApproval("error")
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if !enrollment.IsPending() {
		metrics.RecordApproval("not_pending")
		return nil, &NotPendingError{Status: enrollment.Status}
	}

	if err := s.checkDocuments(ctx, enrollment); err != nil {
		var verr *VerificationError
		if errors.As(err, &verr) {
			metrics.RecordApproval("verification_required")
		} else {
			metrics.RecordApproval("error")
		}
		return nil, err
	}

	activated, err := s.deps.Enrollments.Activate(ctx, enrollment.ID, caller.UserID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// 并发审批已抢先完成,按未处于 pending 处理
			metrics.RecordApproval("not_pending")
			return nil, s.notPendingAfterConflict(ctx, enrollment.ID)
		}
		metrics.RecordApproval("error")
		return nil, fmt.Errorf("failed to activate enrollment: %w", err)
	}

	result := &ApproveResult{
		Enrollment: EnrollmentSummary{
			ID:        activated.ID,
			Status:    activated.Status,
			UserID:    activated.UserID,
			ProgramID: activated.ProgramID,
		},
		Profile: ProfileSummary{ID: activated.UserID},
	}

	// 状态已提交,后续步骤不随请求取消而中断
	followupCtx := context.WithoutCancel(ctx)
	log := s.logger.WithFields(logrus.Fields{
		"enrollment_id": activated.ID,
		"user_id":       activated.UserID,
	})

	profileMirrored := false
	list := NewBestEffortList(log).
		Add(TaskProfileMirror, func(ctx context.Context) error {
			if err := s.deps.Profiles.UpdateEnrollmentStatus(ctx, activated.UserID, model.EnrollmentStatusActive); err != nil {
				return err
			}
			profileMirrored = true
			return nil
		}).
		Add(TaskApprenticeRecord, func(ctx context.Context) error {
			return s.ensureApprentice(ctx, activated)
		}).
		Add(TaskEnrollmentSteps, func(ctx context.Context) error {
			count, err := s.deps.Steps.Generate(ctx, activated.ID)
			if err != nil {
				return err
			}
			result.StepsGeneratedCount = count
			return nil
		}).
		Add(TaskAuditLog, func(ctx context.Context) error {
			return s.deps.AuditLogs.RecordAction(ctx, caller.UserID, AuditActionApproveEnrollment, AuditResourceEnrollment, activated.ID, map[string]interface{}{
				"from_status":       model.EnrollmentStatusPending,
				"to_status":         model.EnrollmentStatusActive,
				"lms_access":        true,
				"user_id":           activated.UserID,
				"program_id":        activated.ProgramID,
				"program_holder_id": activated.HolderID(),
			})
		}).
		Add(TaskStudentNotification, func(ctx context.Context) error {
			student, err := s.deps.Profiles.FindByID(ctx, activated.UserID)
			if err != nil {
				return fmt.Errorf("failed to load student profile: %w", err)
			}
			return s.deps.Notifications.NotifyEnrollmentDecision(ctx, student, activated, DecisionApproved, AudienceStudent)
		})

	if holderID := activated.HolderID(); holderID != "" {
		list.Add(TaskProgramHolderNotifier, func(ctx context.Context) error {
			return s.notifyProgramHolder(ctx, holderID, activated)
		})
	}

	result.Followups = list.Run(followupCtx)

	if profileMirrored {
		result.Profile.EnrollmentStatus = model.EnrollmentStatusActive
	} else if profile, err := s.deps.Profiles.FindByID(followupCtx, activated.UserID); err == nil {
		result.Profile.EnrollmentStatus = profile.EnrollmentStatus
	}

	metrics.RecordApproval(DecisionApproved)
	log.WithFields(logrus.Fields{
		"approved_by": caller.UserID,
		"steps":       result.StepsGeneratedCount,
		"failed":      countFailed(result.Followups),
	}).Info("enrollment approved")

	return result, nil
}

// checkDocuments 学徒用户必须完成证件核验,核验服务异常时拒绝放行
func (s *enrollmentApprovalService) checkDocuments(ctx context.Context, enrollment *model.EnrollmentModel) error {
	apprentice, err := s.deps.Apprentices.FindByUserID(ctx, enrollment.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load apprentice: %w", err)
	}

	res, err := s.deps.Verifier.Check(ctx, apprentice.ID)
	if err != nil {
		return fmt.Errorf("document verification unavailable: %w", err)
	}
	if !res.Allowed {
		docs := res.UnverifiedDocs
		if docs == nil {
			docs = []string{}
		}
		return &VerificationError{
			Reason:              res.Reason,
			UnverifiedDocuments: docs,
		}
	}
	return nil
}

func (s *enrollmentApprovalService) notPendingAfterConflict(ctx context.Context, enrollmentID string) error {
	current, err := s.deps.Enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrEnrollmentNotFound
		}
		return fmt.Errorf("failed to reload enrollment: %w", err)
	}
	return &NotPendingError{Status: current.Status}
}

// ensureApprentice 不存在时创建学徒记录,学时取项目配置,缺失时使用默认值
func (s *enrollmentApprovalService) ensureApprentice(ctx context.Context, enrollment *model.EnrollmentModel) error {
	_, err := s.deps.Apprentices.FindByUserID(ctx, enrollment.UserID)
	if err == nil {
		return nil
	}
	if !repository.IsNotFound(err) {
		return fmt.Errorf("failed to look up apprentice: %w", err)
	}

	hours := s.deps.DefaultRequiredHours
	program, err := s.deps.Programs.FindByID(ctx, enrollment.ProgramID)
	if err != nil {
		s.logger.WithError(err).WithField("program_id", enrollment.ProgramID).Debug("program lookup failed, using default hours")
	} else if program.TotalHours != nil && *program.TotalHours > 0 {
		hours = *program.TotalHours
	}

	now := time.Now()
	err = s.deps.Apprentices.Create(ctx, &model.ApprenticeModel{
		ID:                 uuid.New().String(),
		UserID:             enrollment.UserID,
		ProgramID:          enrollment.ProgramID,
		EnrollmentID:       enrollment.ID,
		TotalHoursRequired: hours,
		Status:             model.ApprenticeStatusActive,
		StartDate:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil && !repository.IsDuplicate(err) {
		return fmt.Errorf("failed to create apprentice: %w", err)
	}
	return nil
}

func (s *enrollmentApprovalService) notifyProgramHolder(ctx context.Context, holderID string, enrollment *model.EnrollmentModel) error {
	holder, err := s.deps.Programs.FindHolderByID(ctx, holderID)
	if err != nil {
		return fmt.Errorf("failed to load program holder: %w", err)
	}
	if holder.ContactUserID == "" {
		return fmt.Errorf("program holder %s has no contact", holderID)
	}
	contact, err := s.deps.Profiles.FindByID(ctx, holder.ContactUserID)
	if err != nil {
		return fmt.Errorf("failed to load program holder contact: %w", err)
	}
	return s.deps.Notifications.NotifyEnrollmentDecision(ctx, contact, enrollment, DecisionApproved, AudienceProgramHolder)
}

func countFailed(outcomes []Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	return failed
}
