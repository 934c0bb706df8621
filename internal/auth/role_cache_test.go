package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/auth"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// fakeProfiles 计数的资料仓储
type fakeProfiles struct {
	profiles map[string]*model.ProfileModel
	err      error
	calls    int
}

func (f *fakeProfiles) Save(ctx context.Context, profile *model.ProfileModel) error {
	f.profiles[profile.ID] = profile
	return nil
}

func (f *fakeProfiles) FindByID(ctx context.Context, id string) (*model.ProfileModel, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeProfiles) UpdateEnrollmentStatus(ctx context.Context, id string, status string) error {
	return nil
}

// TestRoleCache_Expiry 测试缓存过期
func TestRoleCache_Expiry(t *testing.T) {
	cache := auth.NewRoleCache(50 * time.Millisecond)
	cache.Set("u1", "admin")

	role, ok := cache.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, "admin", role)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get("u1")
	assert.False(t, ok)
}

// TestRoleCache_InvalidateAndClear 测试失效与清空
func TestRoleCache_InvalidateAndClear(t *testing.T) {
	cache := auth.NewRoleCache(time.Minute)
	cache.Set("u1", "admin")
	cache.Set("u2", "student")

	cache.Invalidate("u1")
	_, ok := cache.Get("u1")
	assert.False(t, ok)

	cache.Clear()
	_, ok = cache.Get("u2")
	assert.False(t, ok)
}

// TestRoleResolver_ProfileRoleWins 资料角色优先于 Token 角色
func TestRoleResolver_ProfileRoleWins(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]*model.ProfileModel{
		"u1": {ID: "u1", Role: model.RoleStudent},
	}}
	resolver := auth.NewRoleResolver(profiles, auth.NewRoleCache(time.Minute), nil)

	// Token 自称 admin,资料里是 student
	roles := resolver.Resolve(context.Background(), "u1", []string{"admin"})
	assert.Equal(t, []string{model.RoleStudent}, roles)

	// 第二次命中缓存
	_ = resolver.Resolve(context.Background(), "u1", nil)
	assert.Equal(t, 1, profiles.calls)
}

// TestRoleResolver_Fallback 资料缺失或查询失败时退回 Token 角色
func TestRoleResolver_Fallback(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]*model.ProfileModel{
		"empty": {ID: "empty"},
	}}
	resolver := auth.NewRoleResolver(profiles, nil, nil)

	assert.Equal(t, []string{"admin"}, resolver.Resolve(context.Background(), "missing", []string{"admin"}))
	assert.Equal(t, []string{"admin"}, resolver.Resolve(context.Background(), "empty", []string{"admin"}))

	profiles.err = errors.New("connection refused")
	assert.Empty(t, resolver.Resolve(context.Background(), "u1", nil))
}
