package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/metrics"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"github.com/elevateforhumanity/enrollment-gin/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrDispatcherStopped 投递器已停止
var ErrDispatcherStopped = errors.New("email dispatcher stopped")

// EmailMessage 待发送邮件
type EmailMessage struct {
	ToAddress string
	ToName    string
	Template  string
	Subject   string
	Data      map[string]interface{}
}

// EmailDispatcher 邮件投递器接口
type EmailDispatcher interface {
	// Enqueue 写入发件箱并尝试入队,返回发件箱记录 ID
	Enqueue(ctx context.Context, msg *EmailMessage) (string, error)
	// Requeue 把发件箱中仍待发送的记录重新入队,队列满或已在队列中时返回 false
	Requeue(email *model.EmailOutboxModel) bool
	Stop()
}

// DispatcherOptions 投递器参数
type DispatcherOptions struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	Backoff    time.Duration // 首次重试间隔,之后指数增长
}

// outboxDispatcher 基于发件箱表的邮件投递器
type outboxDispatcher struct {
	outbox   repository.EmailOutboxRepository
	sender   Sender
	logger   logrus.FieldLogger
	opts     DispatcherOptions
	queue    chan string
	inflight sync.Map
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEmailDispatcher 创建邮件投递器并启动 worker
func NewEmailDispatcher(outbox repository.EmailOutboxRepository, sender Sender, opts DispatcherOptions, logger logrus.FieldLogger) EmailDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &outboxDispatcher{
		outbox: outbox,
		sender: sender,
		logger: logger.WithField("component", "email_dispatcher"),
		opts:   opts,
		queue:  make(chan string, opts.QueueSize),
		stop:   make(chan struct{}),
	}

	// 启动 worker goroutines
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Enqueue 持久化邮件后异步投递
func (d *outboxDispatcher) Enqueue(ctx context.Context, msg *EmailMessage) (string, error) {
	select {
	case <-d.stop:
		return "", ErrDispatcherStopped
	default:
	}

	data, err := json.Marshal(msg.Data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email data: %w", err)
	}

	now := time.Now()
	email := &model.EmailOutboxModel{
		ID:        uuid.New().String(),
		ToAddress: msg.ToAddress,
		ToName:    msg.ToName,
		Template:  msg.Template,
		Subject:   msg.Subject,
		Data:      data,
		Status:    model.EmailStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.outbox.Save(ctx, email); err != nil {
		return "", fmt.Errorf("failed to save email: %w", err)
	}

	if !d.Requeue(email) {
		// 记录保留为 pending,由定时清扫任务补发
		d.logger.WithField("email_id", email.ID).Warn("email queue full, leaving email for sweeper")
	}
	return email.ID, nil
}

// Requeue 重新入队
func (d *outboxDispatcher) Requeue(email *model.EmailOutboxModel) bool {
	if email.Status != model.EmailStatusPending {
		return false
	}
	if _, loaded := d.inflight.LoadOrStore(email.ID, struct{}{}); loaded {
		return false
	}

	select {
	case <-d.stop:
		d.inflight.Delete(email.ID)
		return false
	default:
	}

	select {
	case d.queue <- email.ID:
		return true
	default:
		d.inflight.Delete(email.ID)
		return false
	}
}

// worker 邮件投递 worker
func (d *outboxDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case id := <-d.queue:
			d.deliver(id)
			d.inflight.Delete(id)
		case <-d.stop:
			return
		}
	}
}

// deliver 投递单封邮件,失败时指数退避重试
func (d *outboxDispatcher) deliver(id string) {
	ctx := context.Background()
	log := d.logger.WithField("email_id", id)

	email, err := d.outbox.FindByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("failed to load email")
		return
	}
	if email.Status != model.EmailStatusPending {
		return
	}

	backoff := d.opts.Backoff
	for attempt := 1; attempt <= d.opts.MaxRetries; attempt++ {
		sendErr := d.sender.Send(ctx, email)
		if sendErr == nil {
			now := time.Now()
			email.Status = model.EmailStatusSent
			email.SentAt = &now
			email.LastError = ""
			email.UpdatedAt = now
			d.save(ctx, email, log)
			metrics.RecordEmail(model.EmailStatusSent)
			log.WithField("template", email.Template).Debug("email sent")
			return
		}

		email.RetryCount++
		email.LastError = sendErr.Error()
		email.UpdatedAt = time.Now()
		log.WithError(sendErr).WithField("attempt", attempt).Warn("failed to send email")

		if attempt == d.opts.MaxRetries {
			break
		}
		d.save(ctx, email, log)
		metrics.RecordEmail("retry")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-d.stop:
			// 停止时保留 pending,下次启动由清扫任务补发
			timer.Stop()
			return
		}
		backoff *= 2 // 指数退避
	}

	email.Status = model.EmailStatusFailed
	d.save(ctx, email, log)
	metrics.RecordEmail(model.EmailStatusFailed)
}

func (d *outboxDispatcher) save(ctx context.Context, email *model.EmailOutboxModel, log logrus.FieldLogger) {
	if err := d.outbox.Save(ctx, email); err != nil {
		log.WithError(err).Error("failed to update email status")
	}
}

// Stop 停止投递器并等待 worker 退出
func (d *outboxDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}
