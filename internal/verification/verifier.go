package verification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/go-resty/resty/v2"
)

// Result 证件核验结果
type Result struct {
	Allowed        bool     `json:"allowed"`
	Reason         string   `json:"reason,omitempty"`
	UnverifiedDocs []string `json:"unverifiedDocs,omitempty"`
}

// Verifier 证件核验接口
// 返回 error 表示核验服务本身不可用,调用方应拒绝放行
type Verifier interface {
	Check(ctx context.Context, apprenticeID string) (*Result, error)
}

// DBVerifier 基于 apprentice_documents 表的核验器
type DBVerifier struct {
	repo     repository.ApprenticeRepository
	required []string
}

// NewDBVerifier 创建数据库核验器
func NewDBVerifier(repo repository.ApprenticeRepository, required []string) *DBVerifier {
	return &DBVerifier{repo: repo, required: required}
}

// Check 每种必需证件都要有一条 verified=true 的记录,缺失与未核验的按配置顺序列出
func (v *DBVerifier) Check(ctx context.Context, apprenticeID string) (*Result, error) {
	docs, err := v.repo.FindDocuments(ctx, apprenticeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load apprentice documents: %w", err)
	}

	verified := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if doc.Verified {
			verified[doc.DocumentType] = true
		}
	}

	var unverified []string
	for _, docType := range v.required {
		if !verified[docType] {
			unverified = append(unverified, docType)
		}
	}

	if len(unverified) == 0 {
		return &Result{Allowed: true}, nil
	}
	return &Result{
		Allowed:        false,
		Reason:         unverifiedReason(unverified),
		UnverifiedDocs: unverified,
	}, nil
}

func unverifiedReason(docs []string) string {
	return fmt.Sprintf("required documents are not verified: %s", strings.Join(docs, ", "))
}

// HTTPVerifier 调用外部核验服务
type HTTPVerifier struct {
	client *resty.Client
	url    string
}

// NewHTTPVerifier 创建 HTTP 核验器
func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		url: url,
	}
}

// Check POST {apprentice_id} 并解析 {allowed, reason, unverifiedDocs}
func (v *HTTPVerifier) Check(ctx context.Context, apprenticeID string) (*Result, error) {
	var result Result
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"apprentice_id": apprenticeID}).
		SetResult(&result).
		Post(v.url)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("verification service returned status %d", resp.StatusCode())
	}
	if !result.Allowed && result.Reason == "" {
		if len(result.UnverifiedDocs) == 0 {
			return nil, errors.New("verification service denied without reason")
		}
		result.Reason = unverifiedReason(result.UnverifiedDocs)
	}
	if result.Allowed {
		result.UnverifiedDocs = nil
	}
	return &result, nil
}

// New 根据模式创建核验器
func New(mode string, repo repository.ApprenticeRepository, required []string, url string, timeout time.Duration) (Verifier, error) {
	switch mode {
	case "", "db":
		if len(required) == 0 {
			required = []string{model.DocumentTypePhotoID}
		}
		return NewDBVerifier(repo, required), nil
	case "http":
		if url == "" {
			return nil, errors.New("verification url is required in http mode")
		}
		return NewHTTPVerifier(url, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported verification mode: %q", mode)
	}
}
