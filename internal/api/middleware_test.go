package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elevateforhumanity/enrollment-gin/internal/api"
	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/elevateforhumanity/enrollment-gin/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// TestRateLimitMiddleware_TooManyRequests 测试限流
func TestRateLimitMiddleware_TooManyRequests(t *testing.T) {
	router := gin.New()
	router.Use(api.RateLimitMiddleware(1, 1))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w1.Code)

	// 立即发送第二个请求应该被限流
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)

	// 不同 IP 各自计数
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "198.51.100.9:4321"
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusOK, w3.Code)
}

// TestCORSMiddleware_Preflight 预检请求直接返回 204
func TestCORSMiddleware_Preflight(t *testing.T) {
	router := gin.New()
	router.Use(api.CORSMiddleware(&config.CORSConfig{
		AllowedOrigins: []string{"https://portal.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         600,
	}))
	router.POST("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// TestSecurityHeadersMiddleware_Production 生产环境下发 HSTS
func TestSecurityHeadersMiddleware_Production(t *testing.T) {
	router := gin.New()
	router.Use(api.SecurityHeadersMiddleware(true))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

// TestHandleServiceError_Internal 未知错误返回 500 且不暴露详情
func TestHandleServiceError_Internal(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		api.HandleServiceError(c, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

// TestHandleServiceError_Verification 核验失败响应结构
func TestHandleServiceError_Verification(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		api.HandleServiceError(c, &service.VerificationError{Reason: "ID expired"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"message":"document verification required","detail":"ID expired","reason":"ID expired","unverifiedDocuments":[]}`, w.Body.String())
}
