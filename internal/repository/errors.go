package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrStatusConflict 条件更新未命中(状态已被并发修改)
var ErrStatusConflict = errors.New("enrollment status changed concurrently")

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate 判断是否为唯一约束冲突(需要开启 gorm TranslateError)
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
