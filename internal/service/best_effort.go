package service

import (
	"context"
	"fmt"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Outcome 单个后续步骤的执行结果
type Outcome struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

type bestEffortTask struct {
	name string
	fn   func(ctx context.Context) error
}

// BestEffortList 按顺序执行的尽力而为步骤
// 每个步骤独立兜底,失败与 panic 只记录不传播
type BestEffortList struct {
	tasks  []bestEffortTask
	logger logrus.FieldLogger
}

// NewBestEffortList 创建步骤列表
func NewBestEffortList(logger logrus.FieldLogger) *BestEffortList {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BestEffortList{logger: logger}
}

// Add 追加步骤
func (l *BestEffortList) Add(name string, fn func(ctx context.Context) error) *BestEffortList {
	l.tasks = append(l.tasks, bestEffortTask{name: name, fn: fn})
	return l
}

// Len 步骤数量
func (l *BestEffortList) Len() int {
	return len(l.tasks)
}

// Run 依次执行全部步骤并返回每一步的结果
func (l *BestEffortList) Run(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(l.tasks))
	for _, task := range l.tasks {
		start := time.Now()
		err := runGuarded(ctx, task.fn)
		outcome := Outcome{
			Name:     task.name,
			OK:       err == nil,
			Duration: time.Since(start),
		}

		log := l.logger.WithFields(logrus.Fields{
			"task":     task.name,
			"duration": outcome.Duration.String(),
		})
		if err != nil {
			outcome.Error = err.Error()
			metrics.RecordFollowupFailure(task.name)
			log.WithError(err).Warn("follow-up task failed")
		} else {
			log.Debug("follow-up task completed")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func runGuarded(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
