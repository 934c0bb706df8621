package service

import (
	"context"
	"fmt"

	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/utils"
)

// ListEnrollmentsRequest 报名列表查询参数
type ListEnrollmentsRequest struct {
	Status          string
	ProgramID       string
	ProgramHolderID string
	UserID          string
	SortBy          string
	SortOrder       string
	Page            int
	PageSize        int
}

// ListEnrollmentsResult 报名列表结果
type ListEnrollmentsResult struct {
	Items    []*model.EnrollmentModel `json:"items"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

// 允许排序的字段
var enrollmentSortFields = []string{"created_at", "updated_at", "approved_at", "status"}

// EnrollmentQueryService 报名查询服务
type EnrollmentQueryService interface {
	List(ctx context.Context, req *ListEnrollmentsRequest) (*ListEnrollmentsResult, error)
	Get(ctx context.Context, id string) (*model.EnrollmentModel, error)
	Steps(ctx context.Context, id string) ([]*model.EnrollmentStepModel, error)
	History(ctx context.Context, id string) ([]*model.StatusHistoryModel, error)
	AuditLogs(ctx context.Context, id string) ([]*model.AuditLogModel, error)
}

// enrollmentQueryService 报名查询服务实现
type enrollmentQueryService struct {
	enrollments repository.EnrollmentRepository
	steps       repository.StepRepository
	auditLogs   repository.AuditLogRepository
	policy      *auth.Policy
}

// NewEnrollmentQueryService 创建报名查询服务
func NewEnrollmentQueryService(
	enrollments repository.EnrollmentRepository,
	steps repository.StepRepository,
	auditLogs repository.AuditLogRepository,
	policy *auth.Policy,
) EnrollmentQueryService {
	if policy == nil {
		policy = auth.DefaultPolicy()
	}
	return &enrollmentQueryService{
		enrollments: enrollments,
		steps:       steps,
		auditLogs:   auditLogs,
		policy:      policy,
	}
}

// List 管理员分页查询
func (s *enrollmentQueryService) List(ctx context.Context, req *ListEnrollmentsRequest) (*ListEnrollmentsResult, error) {
	if _, err := s.authorize(ctx, auth.ActionViewEnrollment); err != nil {
		return nil, err
	}

	filter := &repository.EnrollmentFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Status != "" {
		if err := utils.ValidateEnrollmentStatus(req.Status); err != nil {
			return nil, err
		}
		filter.Status = &req.Status
	}
	if req.ProgramID != "" {
		filter.ProgramID = &req.ProgramID
	}
	if req.ProgramHolderID != "" {
		filter.ProgramHolderID = &req.ProgramHolderID
	}
	if req.UserID != "" {
		filter.UserID = &req.UserID
	}
	if req.SortBy != "" {
		if err := utils.ValidateSortField(req.SortBy, enrollmentSortFields); err != nil {
			return nil, err
		}
		filter.SortBy = req.SortBy
		filter.SortOrder = utils.SanitizeSortOrder(req.SortOrder)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	items, total, err := s.enrollments.FindByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return &ListEnrollmentsResult{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Get 管理员或报名本人可查看详情
func (s *enrollmentQueryService) Get(ctx context.Context, id string) (*model.EnrollmentModel, error) {
	return s.loadVisible(ctx, id)
}

// Steps 查询报名步骤
func (s *enrollmentQueryService) Steps(ctx context.Context, id string) ([]*model.EnrollmentStepModel, error) {
	if _, err := s.loadVisible(ctx, id); err != nil {
		return nil, err
	}
	steps, err := s.steps.FindByEnrollment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	return steps, nil
}

// History 查询状态历史
func (s *enrollmentQueryService) History(ctx context.Context, id string) ([]*model.StatusHistoryModel, error) {
	if _, err := s.loadVisible(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.steps.FindHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return history, nil
}

// AuditLogs 审计记录只对管理员开放
func (s *enrollmentQueryService) AuditLogs(ctx context.Context, id string) ([]*model.AuditLogModel, error) {
	if _, err := s.authorize(ctx, auth.ActionViewEnrollment); err != nil {
		return nil, err
	}
	if err := utils.ValidateEnrollmentID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnrollmentID, err)
	}
	logs, err := s.auditLogs.FindByResource(ctx, AuditResourceEnrollment, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit logs: %w", err)
	}
	return logs, nil
}

func (s *enrollmentQueryService) authorize(ctx context.Context, action auth.Action) (*auth.Caller, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, ErrAuthenticationRequired
	}
	if !s.policy.Allow(caller.Roles, action) {
		return nil, ErrPermissionDenied
	}
	return caller, nil
}

// loadVisible 管理员可看全部,其他用户只能看自己的报名
// 非本人访问返回 404,不暴露报名是否存在
func (s *enrollmentQueryService) loadVisible(ctx context.Context, id string) (*model.EnrollmentModel, error) {
	caller, err := s.authorize(ctx, auth.ActionViewOwnEnrollment)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateEnrollmentID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnrollmentID, err)
	}

	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	if s.policy.Allow(caller.Roles, auth.ActionViewEnrollment) || enrollment.UserID == caller.UserID {
		return enrollment, nil
	}
	return nil, ErrEnrollmentNotFound
}
