package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// ErrMissingToken 请求未携带 Bearer Token
var ErrMissingToken = errors.New("missing bearer token")

// Claims 会话 Token 声明
// 兼容 Supabase (role / app_metadata.role) 与 Keycloak (realm_access.roles) 两种格式
type Claims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// TokenRoles 返回 Token 自带的业务角色
// Supabase 的 authenticated / anon 是数据库角色,不计入
func (c *Claims) TokenRoles() []string {
	roles := make([]string, 0, len(c.RealmAccess.Roles)+2)
	if c.AppMetadata.Role != "" {
		roles = append(roles, c.AppMetadata.Role)
	}
	if c.Role != "" && c.Role != "authenticated" && c.Role != "anon" {
		roles = append(roles, c.Role)
	}
	roles = append(roles, c.RealmAccess.Roles...)
	return roles
}

// TokenValidator Token 校验接口
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// JWTValidator JWT 校验器
// 配置 secret 时按 HS256 校验,否则从 JWKS 获取 RS256 公钥
type JWTValidator struct {
	secret    []byte
	issuer    string
	jwksURL   string
	jwksCache *sync.Map
	client    *resty.Client
}

// NewJWTValidator 创建 JWT 校验器
func NewJWTValidator(secret, issuer, jwksURL string) (*JWTValidator, error) {
	if secret == "" && jwksURL == "" && issuer == "" {
		return nil, errors.New("either jwt secret or jwks url must be configured")
	}
	if secret == "" && jwksURL == "" {
		jwksURL = fmt.Sprintf("%s/protocol/openid-connect/certs", strings.TrimRight(issuer, "/"))
	}
	return &JWTValidator{
		secret:    []byte(secret),
		issuer:    issuer,
		jwksURL:   jwksURL,
		jwksCache: &sync.Map{},
		client:    resty.New().SetTimeout(10 * time.Second),
	}, nil
}

// ValidateToken 校验 Token 签名、过期时间与 issuer
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if len(v.secret) > 0 {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (v *JWTValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if len(v.secret) > 0 {
		return v.secret, nil
	}
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("missing kid in token header")
	}
	return v.GetPublicKey(kid)
}

// GetPublicKey 获取公钥 (从 JWKS 或缓存)
func (v *JWTValidator) GetPublicKey(kid string) (*rsa.PublicKey, error) {
	if cached, ok := v.jwksCache.Load(kid); ok {
		return cached.(*rsa.PublicKey), nil
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}

	resp, err := v.client.R().SetResult(&jwks).Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode())
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid || key.Kty != "RSA" {
			continue
		}
		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.jwksCache.Store(kid, publicKey)
		return publicKey, nil
	}

	return nil, fmt.Errorf("key not found in JWKS: %s", kid)
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// BearerToken 从 Authorization 头中取出 Token
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// AuthMiddleware JWT 认证中间件
// 校验通过后把 Caller 写入请求上下文;缺少或无效的 Token 直接返回 401
func AuthMiddleware(validator TokenValidator, resolver *RoleResolver, logger logrus.FieldLogger) gin.HandlerFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, "missing authorization header", "")
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Debug("rejected session token")
			abortUnauthorized(c, "invalid token", err.Error())
			return
		}

		roles := claims.TokenRoles()
		if resolver != nil {
			roles = resolver.Resolve(c.Request.Context(), claims.Subject, roles)
		}

		caller := &Caller{
			UserID: claims.Subject,
			Email:  claims.Email,
			Roles:  roles,
		}
		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Set("user_id", caller.UserID)
		c.Set("email", caller.Email)
		c.Set("roles", caller.Roles)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message, detail string) {
	body := gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	}
	if detail != "" {
		body["detail"] = detail
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// Caller 当前请求的调用者
type Caller struct {
	UserID string
	Email  string
	Roles  []string
}

// HasRole 判断调用者是否拥有角色
func (c *Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type callerKey struct{}

// WithCaller 把调用者写入上下文
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext 从上下文读取调用者
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(*Caller)
	if !ok || caller == nil || caller.UserID == "" {
		return nil, false
	}
	return caller, true
}
