package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 报名审批结果
	enrollmentApprovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_approvals_total",
			Help: "Total number of enrollment approval attempts by outcome",
		},
		[]string{"outcome"}, // approved, denied, not_pending, verification_required, ...
	)

	// 审批后续步骤失败数
	followupFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_followup_failures_total",
			Help: "Total number of failed best-effort follow-up tasks",
		},
		[]string{"task"},
	)

	// 邮件投递结果
	emailsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_dispatched_total",
			Help: "Total number of emails dispatched by status",
		},
		[]string{"status"}, // sent, failed, retry, dropped
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 报名状态分布
	enrollmentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enrollments_by_status",
			Help: "Number of enrollments by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(enrollmentApprovalsTotal)
	prometheus.MustRegister(followupFailuresTotal)
	prometheus.MustRegister(emailsDispatchedTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(enrollmentsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordApproval 记录审批结果
func RecordApproval(outcome string) {
	enrollmentApprovalsTotal.WithLabelValues(outcome).Inc()
}

// RecordFollowupFailure 记录后续步骤失败
func RecordFollowupFailure(task string) {
	followupFailuresTotal.WithLabelValues(task).Inc()
}

// RecordEmail 记录邮件投递结果
func RecordEmail(status string) {
	emailsDispatchedTotal.WithLabelValues(status).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateEnrollmentsByStatus 更新报名状态分布指标
func UpdateEnrollmentsByStatus(status string, count float64) {
	enrollmentsByStatus.WithLabelValues(status).Set(count)
}
