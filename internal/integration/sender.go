package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// TemplateEnrollmentDecision 报名审批结果邮件模板
const TemplateEnrollmentDecision = "enrollment_decision"

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, email *model.EmailOutboxModel) error
}

// SendGridSender 通过 SendGrid v3 Mail API 发送
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridSender 创建 SendGrid 发送器
func NewSendGridSender(apiKey, fromAddress, fromName string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send 发送邮件
func (s *SendGridSender) Send(ctx context.Context, email *model.EmailOutboxModel) error {
	plain, htmlBody, err := RenderEmail(email)
	if err != nil {
		return err
	}

	to := mail.NewEmail(email.ToName, email.ToAddress)
	message := mail.NewSingleEmail(s.from, email.Subject, to, plain, htmlBody)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender 只写日志的发送器 (开发环境)
type LogSender struct {
	logger logrus.FieldLogger
}

// NewLogSender 创建日志发送器
func NewLogSender(logger logrus.FieldLogger) *LogSender {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSender{logger: logger}
}

// Send 记录邮件内容
func (s *LogSender) Send(ctx context.Context, email *model.EmailOutboxModel) error {
	plain, _, err := RenderEmail(email)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"email_id": email.ID,
		"to":       email.ToAddress,
		"template": email.Template,
		"subject":  email.Subject,
	}).Info(plain)
	return nil
}

// RenderEmail 生成纯文本与 HTML 正文
func RenderEmail(email *model.EmailOutboxModel) (string, string, error) {
	data := map[string]interface{}{}
	if len(email.Data) > 0 {
		if err := json.Unmarshal(email.Data, &data); err != nil {
			return "", "", fmt.Errorf("failed to decode email data: %w", err)
		}
	}

	var lines []string
	switch email.Template {
	case TemplateEnrollmentDecision:
		lines = append(lines, fmt.Sprintf("Hello %s,", greetingName(email)))
		if data["audience"] == "program_holder" {
			lines = append(lines, fmt.Sprintf("An enrollment in your program has been %v.", data["decision"]))
		} else {
			lines = append(lines, fmt.Sprintf("Your enrollment has been %v.", data["decision"]))
		}
		if id, ok := data["enrollment_id"]; ok {
			lines = append(lines, fmt.Sprintf("Enrollment ID: %v", id))
		}
	default:
		lines = append(lines, email.Subject)
		for k, v := range data {
			lines = append(lines, fmt.Sprintf("%s: %v", k, v))
		}
	}

	plain := strings.Join(lines, "\n\n")
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = "<p>" + html.EscapeString(line) + "</p>"
	}
	return plain, strings.Join(escaped, "\n"), nil
}

func greetingName(email *model.EmailOutboxModel) string {
	if email.ToName != "" {
		return email.ToName
	}
	return email.ToAddress
}
