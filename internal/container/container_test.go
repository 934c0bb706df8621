package container_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/elevateforhumanity/enrollment-gin/internal/container"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = ":memory:"
	cfg.Auth.JWTSecret = "container-test-secret"
	cfg.Scheduler.Enabled = false
	cfg.Email.Workers = 1
	return cfg
}

// TestNewContainer 使用 SQLite 组装容器并提供健康检查
func TestNewContainer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctr, err := container.NewContainer(testConfig(), logger)
	require.NoError(t, err)

	require.NoError(t, ctr.StartBackground())
	assert.NotNil(t, ctr.DB())
	assert.NotNil(t, ctr.Dispatcher())
	assert.NotNil(t, ctr.Scheduler())

	router := ctr.Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 业务路由需要认证
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/enrollments", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.NoError(t, ctr.Close())
}

// TestNewContainer_MissingTokenConfig 未配置 Token 校验方式时创建失败
func TestNewContainer_MissingTokenConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""

	logger, _ := test.NewNullLogger()
	_, err := container.NewContainer(cfg, logger)
	assert.Error(t, err)
}

// TestNewContainer_InvalidVerificationMode 核验方式非法时创建失败
func TestNewContainer_InvalidVerificationMode(t *testing.T) {
	cfg := testConfig()
	cfg.Verification.Mode = "carrier-pigeon"

	logger, _ := test.NewNullLogger()
	_, err := container.NewContainer(cfg, logger)
	assert.Error(t, err)
}
