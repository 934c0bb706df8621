package auth

import (
	"context"
	"sync"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// RoleCache 角色缓存
type RoleCache struct {
	cache *sync.Map
	ttl   time.Duration
}

// cacheEntry 缓存条目
type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewRoleCache 创建角色缓存
func NewRoleCache(ttl time.Duration) *RoleCache {
	return &RoleCache{
		cache: &sync.Map{},
		ttl:   ttl,
	}
}

// Get 获取缓存
func (c *RoleCache) Get(userID string) (string, bool) {
	val, found := c.cache.Load(userID)
	if !found {
		return "", false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		// 已过期，删除
		c.cache.Delete(userID)
		return "", false
	}

	return entry.value, true
}

// Set 设置缓存
func (c *RoleCache) Set(userID string, role string) {
	c.cache.Store(userID, &cacheEntry{
		value:     role,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Invalidate 删除单个用户的缓存
func (c *RoleCache) Invalidate(userID string) {
	c.cache.Delete(userID)
}

// Clear 清空缓存
func (c *RoleCache) Clear() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

// RoleResolver 从 profiles.role 解析调用者角色
type RoleResolver struct {
	profiles repository.ProfileRepository
	cache    *RoleCache
	logger   logrus.FieldLogger
}

// NewRoleResolver 创建角色解析器
func NewRoleResolver(profiles repository.ProfileRepository, cache *RoleCache, logger logrus.FieldLogger) *RoleResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoleResolver{
		profiles: profiles,
		cache:    cache,
		logger:   logger,
	}
}

// Resolve 返回调用者角色
// 以资料中的角色为准;查不到资料或角色为空时退回 Token 自带角色
func (r *RoleResolver) Resolve(ctx context.Context, userID string, tokenRoles []string) []string {
	if r.cache != nil {
		if role, ok := r.cache.Get(userID); ok {
			return effectiveRoles(role, tokenRoles)
		}
	}

	profile, err := r.profiles.FindByID(ctx, userID)
	if err != nil {
		if !repository.IsNotFound(err) {
			r.logger.WithError(err).WithField("user_id", userID).Warn("failed to load profile role")
		}
		return tokenRoles
	}

	if r.cache != nil {
		r.cache.Set(userID, profile.Role)
	}
	return effectiveRoles(profile.Role, tokenRoles)
}

func effectiveRoles(profileRole string, tokenRoles []string) []string {
	if profileRole == "" {
		return tokenRoles
	}
	return []string{profileRole}
}
