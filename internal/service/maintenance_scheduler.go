package service

import (
	"context"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/integration"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MaintenanceScheduleConfig 维护任务计划 (cron 表达式)
type MaintenanceScheduleConfig struct {
	OutboxSweep string        // 补发滞留邮件,如 "@every 5m"
	StepRepair  string        // 为缺少步骤的 active 报名补生成,如 "@hourly"
	OutboxAge   time.Duration // 超过该时长仍为 pending 的邮件才补发
	BatchSize   int
}

// MaintenanceScheduler 维护任务调度器
type MaintenanceScheduler struct {
	cron        *cron.Cron
	config      MaintenanceScheduleConfig
	outbox      repository.EmailOutboxRepository
	dispatcher  integration.EmailDispatcher
	enrollments repository.EnrollmentRepository
	steps       StepGenerator
	logger      logrus.FieldLogger
}

// NewMaintenanceScheduler 创建维护任务调度器
func NewMaintenanceScheduler(
	config MaintenanceScheduleConfig,
	outbox repository.EmailOutboxRepository,
	dispatcher integration.EmailDispatcher,
	enrollments repository.EnrollmentRepository,
	steps StepGenerator,
	logger logrus.FieldLogger,
) *MaintenanceScheduler {
	if config.OutboxAge <= 0 {
		config.OutboxAge = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MaintenanceScheduler{
		cron:        cron.New(),
		config:      config,
		outbox:      outbox,
		dispatcher:  dispatcher,
		enrollments: enrollments,
		steps:       steps,
		logger:      logger.WithField("component", "maintenance_scheduler"),
	}
}

// Start 注册任务并启动调度
func (s *MaintenanceScheduler) Start() error {
	if s.config.OutboxSweep != "" {
		if _, err := s.cron.AddFunc(s.config.OutboxSweep, s.runJob("outbox_sweep", s.SweepOutbox)); err != nil {
			return fmt.Errorf("invalid outbox_sweep schedule %q: %w", s.config.OutboxSweep, err)
		}
	}
	if s.config.StepRepair != "" {
		if _, err := s.cron.AddFunc(s.config.StepRepair, s.runJob("step_repair", s.RepairSteps)); err != nil {
			return fmt.Errorf("invalid step_repair schedule %q: %w", s.config.StepRepair, err)
		}
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"outbox_sweep": s.config.OutboxSweep,
		"step_repair":  s.config.StepRepair,
	}).Info("maintenance scheduler started")
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *MaintenanceScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *MaintenanceScheduler) runJob(name string, job func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		log := s.logger.WithFields(logrus.Fields{
			"job":      name,
			"count":    n,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			log.WithError(err).Error("maintenance job failed")
			return
		}
		log.Debug("maintenance job completed")
	}
}

// SweepOutbox 把滞留的 pending 邮件重新入队,返回入队数量
func (s *MaintenanceScheduler) SweepOutbox(ctx context.Context) (int, error) {
	emails, err := s.outbox.FindPending(ctx, time.Now().Add(-s.config.OutboxAge), s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending emails: %w", err)
	}

	queued := 0
	for _, email := range emails {
		if s.dispatcher.Requeue(email) {
			queued++
		}
	}
	return queued, nil
}

// RepairSteps 为没有步骤的 active 报名补生成步骤,返回修复的报名数量
func (s *MaintenanceScheduler) RepairSteps(ctx context.Context) (int, error) {
	enrollments, err := s.enrollments.FindActiveWithoutSteps(ctx, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find enrollments without steps: %w", err)
	}

	repaired := 0
	for _, enrollment := range enrollments {
		count, err := s.steps.Generate(ctx, enrollment.ID)
		if err != nil {
			s.logger.WithError(err).WithField("enrollment_id", enrollment.ID).Warn("failed to regenerate steps")
			continue
		}
		if count > 0 {
			repaired++
		}
	}
	return repaired, nil
}
