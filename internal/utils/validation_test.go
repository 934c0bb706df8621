package utils_test

import (
	"strings"
	"testing"

	"github.com/elevateforhumanity/enrollment-gin/internal/utils"
	"github.com/stretchr/testify/assert"
)

// TestValidateEnrollmentID 测试报名 ID 校验
func TestValidateEnrollmentID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want error
	}{
		{"uuid", "3f2a9c1e-7b4d-4e8a-9c2f-1a2b3c4d5e6f", nil},
		{"underscore", "enr_001", nil},
		{"empty", "", utils.ErrEmptyID},
		{"blank", "   ", utils.ErrEmptyID},
		{"too long", strings.Repeat("a", 65), utils.ErrIDTooLong},
		{"sql injection", "1' OR '1'='1", utils.ErrInvalidIDFormat},
		{"path traversal", "../etc/passwd", utils.ErrInvalidIDFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := utils.ValidateEnrollmentID(tt.id)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, err)
		})
	}
}

// TestValidateEnrollmentStatus 测试报名状态校验
func TestValidateEnrollmentStatus(t *testing.T) {
	for _, status := range []string{"pending", "active", "completed", "withdrawn"} {
		assert.NoError(t, utils.ValidateEnrollmentStatus(status), status)
	}
	assert.Equal(t, utils.ErrInvalidStatus, utils.ValidateEnrollmentStatus("approved"))
}

// TestValidateSortField 测试排序字段白名单
func TestValidateSortField(t *testing.T) {
	allowed := []string{"created_at", "status"}

	assert.NoError(t, utils.ValidateSortField("created_at", allowed))
	assert.Equal(t, utils.ErrInvalidSort, utils.ValidateSortField("created_at; DROP TABLE enrollments", allowed))
}

// TestSanitizeSortOrder 测试排序方向清理
func TestSanitizeSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", utils.SanitizeSortOrder(" asc "))
	assert.Equal(t, "DESC", utils.SanitizeSortOrder("DESC"))
	assert.Equal(t, "DESC", utils.SanitizeSortOrder("sideways"))
}
