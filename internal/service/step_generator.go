package service

import (
	"context"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StepGenerator 报名步骤生成器
// 对同一报名重复调用只返回已有数量,不会重复插入
type StepGenerator interface {
	Generate(ctx context.Context, enrollmentID string) (int, error)
}

// ProcedureStepGenerator 调用数据库存储过程 generate_enrollment_steps
type ProcedureStepGenerator struct {
	db *gorm.DB
}

// NewProcedureStepGenerator 创建存储过程生成器
func NewProcedureStepGenerator(db *gorm.DB) *ProcedureStepGenerator {
	return &ProcedureStepGenerator{db: db}
}

// Generate 生成步骤
func (g *ProcedureStepGenerator) Generate(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	if err := g.db.WithContext(ctx).Raw("SELECT generate_enrollment_steps(?)", enrollmentID).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("generate_enrollment_steps failed: %w", err)
	}
	return count, nil
}

// NativeStepGenerator 在应用内生成步骤,逻辑与存储过程一致
type NativeStepGenerator struct {
	enrollments repository.EnrollmentRepository
	programs    repository.ProgramRepository
	steps       repository.StepRepository
}

// NewNativeStepGenerator 创建应用内生成器
func NewNativeStepGenerator(
	enrollments repository.EnrollmentRepository,
	programs repository.ProgramRepository,
	steps repository.StepRepository,
) *NativeStepGenerator {
	return &NativeStepGenerator{
		enrollments: enrollments,
		programs:    programs,
		steps:       steps,
	}
}

// Generate 生成步骤,项目未配置模板时使用默认清单
func (g *NativeStepGenerator) Generate(ctx context.Context, enrollmentID string) (int, error) {
	existing, err := g.steps.CountByEnrollment(ctx, enrollmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count steps: %w", err)
	}
	if existing > 0 {
		return int(existing), nil
	}

	enrollment, err := g.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load enrollment %s: %w", enrollmentID, err)
	}

	titles := model.DefaultEnrollmentSteps
	if program, err := g.programs.FindByID(ctx, enrollment.ProgramID); err == nil {
		if custom, err := program.StepTitles(); err == nil && len(custom) > 0 {
			titles = custom
		}
	}

	now := time.Now()
	steps := make([]*model.EnrollmentStepModel, 0, len(titles))
	for i, title := range titles {
		steps = append(steps, &model.EnrollmentStepModel{
			ID:           uuid.New().String(),
			EnrollmentID: enrollmentID,
			Sequence:     i + 1,
			Title:        title,
			Status:       model.StepStatusPending,
			CreatedAt:    now,
		})
	}

	if err := g.steps.CreateBatch(ctx, steps); err != nil {
		if repository.IsDuplicate(err) {
			// 并发生成时另一方已写入
			count, countErr := g.steps.CountByEnrollment(ctx, enrollmentID)
			if countErr == nil {
				return int(count), nil
			}
		}
		return 0, fmt.Errorf("failed to create steps: %w", err)
	}
	return len(steps), nil
}

// NewStepGenerator 根据配置选择生成器
// auto: PostgreSQL 使用存储过程,其余使用应用内实现
func NewStepGenerator(
	mode string,
	db *gorm.DB,
	enrollments repository.EnrollmentRepository,
	programs repository.ProgramRepository,
	steps repository.StepRepository,
) (StepGenerator, error) {
	switch mode {
	case "procedure":
		return NewProcedureStepGenerator(db), nil
	case "native":
		return NewNativeStepGenerator(enrollments, programs, steps), nil
	case "", "auto":
		if db != nil && db.Dialector.Name() == "postgres" {
			return NewProcedureStepGenerator(db), nil
		}
		return NewNativeStepGenerator(enrollments, programs, steps), nil
	default:
		return nil, fmt.Errorf("unsupported step generator: %q", mode)
	}
}
