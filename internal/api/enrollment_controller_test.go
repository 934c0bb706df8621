package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/api"
	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/elevateforhumanity/enrollment-gin/internal/database"
	"github.com/elevateforhumanity/enrollment-gin/internal/integration"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/elevateforhumanity/enrollment-gin/internal/verification"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "controller-test-secret"

// discardDispatcher 丢弃所有邮件
type discardDispatcher struct{}

func (discardDispatcher) Enqueue(ctx context.Context, msg *integration.EmailMessage) (string, error) {
	return "email-1", nil
}

func (discardDispatcher) Requeue(email *model.EmailOutboxModel) bool { return false }

func (discardDispatcher) Stop() {}

func init() {
	gin.SetMode(gin.TestMode)
	api.SetLoggerOutput(io.Discard)
}

// setupTestRouter 使用内存 SQLite 组装完整路由
func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	enrollments := repository.NewEnrollmentRepository(db)
	profiles := repository.NewProfileRepository(db)
	apprentices := repository.NewApprenticeRepository(db)
	programs := repository.NewProgramRepository(db)
	steps := repository.NewStepRepository(db)
	auditLogs := repository.NewAuditLogRepository(db)
	policy := auth.DefaultPolicy()

	approvals := service.NewEnrollmentApprovalService(service.ApprovalDependencies{
		Enrollments:   enrollments,
		Profiles:      profiles,
		Apprentices:   apprentices,
		Programs:      programs,
		Verifier:      verification.NewDBVerifier(apprentices, []string{model.DocumentTypePhotoID}),
		Steps:         service.NewNativeStepGenerator(enrollments, programs, steps),
		AuditLogs:     service.NewAuditLogService(auditLogs),
		Notifications: service.NewNotificationService(repository.NewNotificationRepository(db), discardDispatcher{}),
		Policy:        policy,
	})
	queries := service.NewEnrollmentQueryService(enrollments, steps, auditLogs, policy)

	validator, err := auth.NewJWTValidator(testSecret, "", "")
	require.NoError(t, err)
	resolver := auth.NewRoleResolver(profiles, auth.NewRoleCache(time.Minute), nil)

	router := api.SetupRoutesWithConfig(api.RouterOptions{
		DB:          db,
		Auth:        auth.AuthMiddleware(validator, resolver, nil),
		Enrollments: api.NewEnrollmentController(approvals, queries),
		CORS:        &config.Default().CORS,
	})

	seedData(t, db)
	return router, db
}

func seedData(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now()
	holderID := "h1"
	rows := []interface{}{
		&model.ProfileModel{ID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin, CreatedAt: now, UpdatedAt: now},
		&model.ProfileModel{ID: "u1", Email: "u1@example.com", Role: model.RoleStudent, EnrollmentStatus: model.EnrollmentStatusPending, CreatedAt: now, UpdatedAt: now},
		&model.ProfileModel{ID: "holder-contact", Email: "holder@example.com", Role: model.RoleProgramHolder, CreatedAt: now, UpdatedAt: now},
		&model.ProgramModel{ID: "p1", Name: "Barbering", CreatedAt: now, UpdatedAt: now},
		&model.ProgramHolderModel{ID: "h1", Name: "Main Street Barbers", ContactUserID: "holder-contact", CreatedAt: now, UpdatedAt: now},
		&model.EnrollmentModel{ID: "e1", UserID: "u1", ProgramID: "p1", ProgramHolderID: &holderID, Status: model.EnrollmentStatusPending, CreatedAt: now, UpdatedAt: now},
		&model.EnrollmentModel{ID: "e-active", UserID: "u1", ProgramID: "p1", Status: model.EnrollmentStatusActive, CreatedAt: now, UpdatedAt: now},
		&model.ApprenticeModel{ID: "a1", UserID: "u1", ProgramID: "p1", TotalHoursRequired: 2000, Status: model.ApprenticeStatusActive, StartDate: now, CreatedAt: now, UpdatedAt: now},
	}
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}
}

func setPhotoID(t *testing.T, db *gorm.DB, verified bool) {
	t.Helper()
	require.NoError(t, db.Create(&model.ApprenticeDocumentModel{
		ID: "d1", ApprenticeID: "a1", DocumentType: model.DocumentTypePhotoID, Verified: verified, CreatedAt: time.Now(),
	}).Error)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(router *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func approveBody(id string) []byte {
	body, _ := json.Marshal(map[string]string{"enrollment_id": id})
	return body
}

func enrollmentStatus(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var enrollment model.EnrollmentModel
	require.NoError(t, db.Where("id = ?", id).First(&enrollment).Error)
	return enrollment.Status
}

// TestApprove_Unauthenticated 未携带 Token 返回 401
func TestApprove_Unauthenticated(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/enroll/approve", "", approveBody("e1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/enroll/approve", "not-a-jwt", approveBody("e1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestApprove_NonAdminForbidden 学员与项目方不论报名状态一律 403
func TestApprove_NonAdminForbidden(t *testing.T) {
	router, db := setupTestRouter(t)

	for _, user := range []string{"u1", "holder-contact", "unknown-user"} {
		for _, body := range [][]byte{approveBody("e1"), approveBody("e-active"), approveBody("missing"), []byte(`{}`), []byte(`garbage`)} {
			w := doRequest(router, http.MethodPost, "/api/v1/enroll/approve", tokenFor(t, user), body)
			assert.Equal(t, http.StatusForbidden, w.Code, "user=%s body=%s", user, body)
		}
	}
	assert.Equal(t, model.EnrollmentStatusPending, enrollmentStatus(t, db, "e1"))
}

// TestApprove_ErrorMapping 管理员请求的错误映射
func TestApprove_ErrorMapping(t *testing.T) {
	router, _ := setupTestRouter(t)
	admin := tokenFor(t, "admin-1")

	tests := []struct {
		name    string
		body    []byte
		status  int
		message string
	}{
		{"missing id", []byte(`{}`), http.StatusBadRequest, "invalid enrollment_id"},
		{"malformed body", []byte(`{"enrollment_id":`), http.StatusBadRequest, "invalid enrollment_id"},
		{"invalid id", approveBody("e1' OR 1=1"), http.StatusBadRequest, "invalid enrollment_id"},
		{"not found", approveBody("missing"), http.StatusNotFound, "enrollment not found"},
		{"not pending", approveBody("e-active"), http.StatusBadRequest, "enrollment is not pending (current status: active)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/enroll/approve", admin, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

// TestApprove_UnverifiedPhotoID photo_id 未核验返回 400 与未核验证件列表
func TestApprove_UnverifiedPhotoID(t *testing.T) {
	router, db := setupTestRouter(t)
	setPhotoID(t, db, false)

	w := doRequest(router, http.MethodPost, "/api/v1/enroll/approve", tokenFor(t, "admin-1"), approveBody("e1"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []interface{}{"photo_id"}, resp["unverifiedDocuments"])
	assert.NotEmpty(t, resp["reason"])
	assert.Equal(t, model.EnrollmentStatusPending, enrollmentStatus(t, db, "e1"))

	var history int64
	require.NoError(t, db.Model(&model.StatusHistoryModel{}).Count(&history).Error)
	assert.Zero(t, history)
}

// TestApprove_VerifiedPhotoID photo_id 已核验时审批成功
func TestApprove_VerifiedPhotoID(t *testing.T) {
	router, db := setupTestRouter(t)
	setPhotoID(t, db, true)

	w := doRequest(router, http.MethodPost, "/api/v1/enroll/approve", tokenFor(t, "admin-1"), approveBody("e1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Enrollment struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"enrollment"`
			Profile struct {
				EnrollmentStatus string `json:"enrollment_status"`
			} `json:"profile"`
			StepsGeneratedCount *int `json:"stepsGeneratedCount"`
			Followups           []struct {
				Name string `json:"name"`
				OK   bool   `json:"ok"`
			} `json:"followups"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "e1", resp.Data.Enrollment.ID)
	assert.Equal(t, "active", resp.Data.Enrollment.Status)
	assert.Equal(t, "active", resp.Data.Profile.EnrollmentStatus)
	require.NotNil(t, resp.Data.StepsGeneratedCount)
	assert.GreaterOrEqual(t, *resp.Data.StepsGeneratedCount, 0)
	assert.Len(t, resp.Data.Followups, 6)
	assert.Equal(t, model.EnrollmentStatusActive, enrollmentStatus(t, db, "e1"))

	// 再次审批返回 not pending
	w = doRequest(router, http.MethodPost, "/api/v1/enrollments/e1/approve", tokenFor(t, "admin-1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "current status: active")
}

// TestApproveByID 路径形式的审批接口
func TestApproveByID(t *testing.T) {
	router, db := setupTestRouter(t)
	setPhotoID(t, db, true)

	w := doRequest(router, http.MethodPost, "/api/v1/enrollments/e1/approve", tokenFor(t, "admin-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.EnrollmentStatusActive, enrollmentStatus(t, db, "e1"))
}

// TestListEnrollments 管理员分页查询,学员无权访问
func TestListEnrollments(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/enrollments?status=pending&page_size=10", tokenFor(t, "admin-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Pagination.Total)
	assert.Equal(t, 10, resp.Pagination.PageSize)
	assert.Equal(t, 1, resp.Pagination.TotalPage)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments?status=bogus", tokenFor(t, "admin-1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments", tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestGetEnrollment 本人可查看详情,其他用户得到 404
func TestGetEnrollment(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/enrollments/e1", tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments/e1", tokenFor(t, "holder-contact"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments/e1/steps", tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments/e1/history", tokenFor(t, "admin-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/enrollments/e1/audit-logs", tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestInfrastructureRoutes 健康检查、指标与未知路由
func TestInfrastructureRoutes(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = doRequest(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_requests_total")

	w = doRequest(router, http.MethodGet, "/api/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}

// TestRequestIDAndSecurityHeaders 请求 ID 回传与安全头
func TestRequestIDAndSecurityHeaders(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(api.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Len(t, w.Header().Get(api.RequestIDHeader), 36)
}
