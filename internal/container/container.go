package container

import (
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/api"
	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/elevateforhumanity/enrollment-gin/internal/database"
	"github.com/elevateforhumanity/enrollment-gin/internal/integration"
	"github.com/elevateforhumanity/enrollment-gin/internal/metrics"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/elevateforhumanity/enrollment-gin/internal/verification"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、仓储、服务与后台任务
type Container struct {
	cfg        *config.Config
	db         *gorm.DB
	logger     *logrus.Logger
	validator  auth.TokenValidator
	resolver   *auth.RoleResolver
	dispatcher integration.EmailDispatcher
	scheduler  *service.MaintenanceScheduler
	collector  *metrics.Collector
	controller *api.EnrollmentController
}

// NewContainer 创建依赖注入容器
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = api.GetLogger()
	}

	// 1. 初始化数据库（带重试机制）,默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	ctr, err := NewContainerWithDB(cfg, db, logger)
	if err != nil {
		database.Close(db)
		return nil, err
	}
	return ctr, nil
}

// NewContainerWithDB 使用已有数据库连接组装依赖 (测试时传入内存 SQLite)
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	// 2. 仓储
	enrollments := repository.NewEnrollmentRepository(db)
	profiles := repository.NewProfileRepository(db)
	apprentices := repository.NewApprenticeRepository(db)
	programs := repository.NewProgramRepository(db)
	steps := repository.NewStepRepository(db)
	auditLogs := repository.NewAuditLogRepository(db)
	notifications := repository.NewNotificationRepository(db)
	outbox := repository.NewEmailOutboxRepository(db)

	// 3. 认证
	validator, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token validator: %w", err)
	}
	roleTTL := time.Duration(cfg.Auth.RoleTTL) * time.Second
	resolver := auth.NewRoleResolver(profiles, auth.NewRoleCache(roleTTL), logger)
	policy := auth.DefaultPolicy()

	// 4. 证件核验
	verifier, err := verification.New(
		cfg.Verification.Mode,
		apprentices,
		cfg.Verification.RequiredDocuments,
		cfg.Verification.HTTPURL,
		time.Duration(cfg.Verification.Timeout)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize verifier: %w", err)
	}

	// 5. 步骤生成
	stepGenerator, err := service.NewStepGenerator(cfg.Approval.StepGenerator, db, enrollments, programs, steps)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize step generator: %w", err)
	}

	// 6. 邮件投递
	var sender integration.Sender
	switch cfg.Email.Provider {
	case "sendgrid":
		sender = integration.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromAddress, cfg.Email.FromName)
	default:
		sender = integration.NewLogSender(logger)
	}
	dispatcher := integration.NewEmailDispatcher(outbox, sender, integration.DispatcherOptions{
		Workers:    cfg.Email.Workers,
		QueueSize:  cfg.Email.QueueSize,
		MaxRetries: cfg.Email.MaxRetries,
	}, logger)

	// 7. 服务
	notificationSvc := service.NewNotificationService(notifications, dispatcher)
	approvalSvc := service.NewEnrollmentApprovalService(service.ApprovalDependencies{
		Enrollments:          enrollments,
		Profiles:             profiles,
		Apprentices:          apprentices,
		Programs:             programs,
		Verifier:             verifier,
		Steps:                stepGenerator,
		AuditLogs:            service.NewAuditLogService(auditLogs),
		Notifications:        notificationSvc,
		Policy:               policy,
		DefaultRequiredHours: cfg.Approval.DefaultRequiredHours,
		Logger:               logger,
	})
	querySvc := service.NewEnrollmentQueryService(enrollments, steps, auditLogs, policy)

	// 8. 后台任务
	scheduler := service.NewMaintenanceScheduler(service.MaintenanceScheduleConfig{
		OutboxSweep: cfg.Scheduler.OutboxSweep,
		StepRepair:  cfg.Scheduler.StepRepair,
	}, outbox, dispatcher, enrollments, stepGenerator, logger)
	collector := metrics.NewCollector(db, enrollments, 15*time.Second)

	return &Container{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		validator:  validator,
		resolver:   resolver,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		collector:  collector,
		controller: api.NewEnrollmentController(approvalSvc, querySvc),
	}, nil
}

// Router 组装 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutesWithConfig(api.RouterOptions{
		DB:            c.db,
		Auth:          auth.AuthMiddleware(c.validator, c.resolver, c.logger),
		Enrollments:   c.controller,
		CORS:          &c.cfg.CORS,
		RateLimit:     &c.cfg.RateLimit,
		Production:    config.IsProduction(c.cfg),
		EnableTracing: c.cfg.Tracing.Enabled,
	})
}

// StartBackground 启动定时任务与指标收集
func (c *Container) StartBackground() error {
	c.collector.Start()
	if c.cfg.Scheduler.Enabled {
		if err := c.scheduler.Start(); err != nil {
			return err
		}
	}
	return nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Dispatcher 获取邮件投递器
func (c *Container) Dispatcher() integration.EmailDispatcher {
	return c.dispatcher
}

// Scheduler 获取维护任务调度器
func (c *Container) Scheduler() *service.MaintenanceScheduler {
	return c.scheduler
}

// Close 关闭容器,按依赖顺序释放资源
func (c *Container) Close() error {
	c.scheduler.Stop()
	c.collector.Stop()
	c.dispatcher.Stop()
	database.Close(c.db)
	return nil
}
