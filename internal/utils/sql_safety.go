package utils

import (
	"strings"
)

// ValidateSortField 排序字段只能取白名单中的列,防止 SQL 注入
func ValidateSortField(field string, allowed []string) error {
	for _, a := range allowed {
		if field == a {
			return nil
		}
	}
	return ErrInvalidSort
}

// SanitizeSortOrder 清理排序方向
func SanitizeSortOrder(order string) string {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder == "ASC" || upperOrder == "DESC" {
		return upperOrder
	}
	return "DESC" // 默认降序
}
