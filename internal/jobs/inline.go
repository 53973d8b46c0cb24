package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/logging"
)

const inlineTimeout = 2 * time.Minute

// Inline は Redis を使わずにプロセス内の goroutine で後片付けを実行します。
// 失敗は記録するだけで再試行しません。
type Inline struct {
	cleaner Cleaner
	logger  *zap.Logger
	wg      sync.WaitGroup
}

var _ Scheduler = (*Inline)(nil)

// NewInline は Inline を作成します。
func NewInline(logger *zap.Logger) *Inline {
	return &Inline{logger: logging.OrNop(logger).Named("jobs")}
}

// Bind はジョブから呼び出す Cleaner を設定します。
func (i *Inline) Bind(cleaner Cleaner) {
	i.cleaner = cleaner
}

func (i *Inline) ScheduleInputCleanup(_ context.Context, taskID string) error {
	return i.spawn(TypeClearInputs, taskID)
}

func (i *Inline) ScheduleResultRemoval(_ context.Context, taskID string) error {
	return i.spawn(TypeDropResult, taskID)
}

// Wait は実行中のジョブがすべて終わるまで待ちます。
func (i *Inline) Wait() {
	i.wg.Wait()
}

func (i *Inline) spawn(jobType, taskID string) error {
	if i.cleaner == nil {
		return ErrNotBound
	}
	cleaner := i.cleaner

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
		defer cancel()

		if err := execute(ctx, cleaner, jobType, taskID); err != nil {
			i.logger.Warn("cleanup job failed",
				zap.String("type", jobType),
				zap.String("task_id", taskID),
				zap.Error(err),
			)
		}
	}()
	return nil
}
