package api

import (
	"net/http"

	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterOptions 路由依赖
type RouterOptions struct {
	DB            *gorm.DB
	Auth          gin.HandlerFunc // 认证中间件,为空时业务路由不做认证 (仅测试)
	Enrollments   *EnrollmentController
	CORS          *config.CORSConfig
	RateLimit     *config.RateLimitConfig
	Production    bool
	EnableTracing bool
}

// SetupRoutesWithConfig 配置路由
func SetupRoutesWithConfig(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if opts.EnableTracing {
		router.Use(TracingMiddleware())
	}
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	if opts.CORS != nil {
		router.Use(CORSMiddleware(opts.CORS))
	}
	router.Use(SecurityHeadersMiddleware(opts.Production))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(opts.DB)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	if opts.RateLimit != nil && opts.RateLimit.RPS > 0 {
		v1.Use(RateLimitMiddleware(opts.RateLimit.RPS, opts.RateLimit.Burst))
	}
	if opts.Auth != nil {
		v1.Use(opts.Auth)
	}

	if ec := opts.Enrollments; ec != nil {
		v1.POST("/enroll/approve", ec.Approve)

		enrollments := v1.Group("/enrollments")
		{
			enrollments.GET("", ec.List)
			enrollments.GET("/:id", ec.Get)
			enrollments.POST("/:id/approve", ec.ApproveByID)
			enrollments.GET("/:id/steps", ec.Steps)
			enrollments.GET("/:id/history", ec.History)
			enrollments.GET("/:id/audit-logs", ec.AuditLogs)
		}
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}
