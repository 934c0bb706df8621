package api

import (
	"strconv"

	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EnrollmentController 报名控制器
type EnrollmentController struct {
	approvals service.EnrollmentApprovalService
	queries   service.EnrollmentQueryService
}

// NewEnrollmentController 创建报名控制器
func NewEnrollmentController(approvals service.EnrollmentApprovalService, queries service.EnrollmentQueryService) *EnrollmentController {
	return &EnrollmentController{
		approvals: approvals,
		queries:   queries,
	}
}

// ApproveEnrollmentRequest 审批请求
type ApproveEnrollmentRequest struct {
	EnrollmentID string `json:"enrollment_id"`
}

// Approve 审批报名 (POST /enroll/approve)
// 请求体无法解析时按缺少 enrollment_id 处理,仍先做身份与角色检查
func (c *EnrollmentController) Approve(ctx *gin.Context) {
	var req ApproveEnrollmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		req.EnrollmentID = ""
	}
	c.approve(ctx, req.EnrollmentID)
}

// ApproveByID 审批报名 (POST /enrollments/:id/approve)
func (c *EnrollmentController) ApproveByID(ctx *gin.Context) {
	c.approve(ctx, ctx.Param("id"))
}

func (c *EnrollmentController) approve(ctx *gin.Context, enrollmentID string) {
	spanCtx, span := startSpan(ctx, "enrollment.approve", attribute.String("enrollment.id", enrollmentID))
	defer span.End()

	result, err := c.approvals.Approve(spanCtx, enrollmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		HandleServiceError(ctx, err)
		return
	}

	span.SetAttributes(attribute.Int("enrollment.steps_generated", result.StepsGeneratedCount))
	Success(ctx, result)
}

// List 报名列表
func (c *EnrollmentController) List(ctx *gin.Context) {
	req := &service.ListEnrollmentsRequest{
		Status:          ctx.Query("status"),
		ProgramID:       ctx.Query("program_id"),
		ProgramHolderID: ctx.Query("program_holder_id"),
		UserID:          ctx.Query("user_id"),
		SortBy:          ctx.Query("sort_by"),
		SortOrder:       ctx.Query("sort_order"),
		Page:            queryInt(ctx, "page"),
		PageSize:        queryInt(ctx, "page_size"),
	}

	result, err := c.queries.List(ctx.Request.Context(), req)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Paginated(ctx, result.Items, result.Page, result.PageSize, result.Total)
}

// Get 报名详情
func (c *EnrollmentController) Get(ctx *gin.Context) {
	enrollment, err := c.queries.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, enrollment)
}

// Steps 报名步骤
func (c *EnrollmentController) Steps(ctx *gin.Context) {
	steps, err := c.queries.Steps(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, steps)
}

// History 状态历史
func (c *EnrollmentController) History(ctx *gin.Context) {
	history, err := c.queries.History(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, history)
}

// AuditLogs 审计记录
func (c *EnrollmentController) AuditLogs(ctx *gin.Context) {
	logs, err := c.queries.AuditLogs(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, logs)
}

// queryInt 解析整数查询参数,非法值按 0 处理 (使用默认值)
func queryInt(ctx *gin.Context, key string) int {
	n, err := strconv.Atoi(ctx.Query(key))
	if err != nil {
		return 0
	}
	return n
}
