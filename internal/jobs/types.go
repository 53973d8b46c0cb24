// Package jobs はタスクの後片付けを遅延実行する仕組みと、タスク単位の排他ロックを提供します。
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/paper-tasks/internal/metrics"
)

const (
	// TypeClearInputs はタスクに添付された入力ファイルを削除するジョブです。
	TypeClearInputs = "cleanup:inputs"
	// TypeDropResult はダウンロード済み成果物の実体を削除するジョブです。
	TypeDropResult = "cleanup:result"

	queueCleanup = "cleanup"
)

// ErrNotBound は Cleaner が設定される前にジョブが実行された場合のエラーです。
var ErrNotBound = errors.New("jobs: cleaner is not bound")

// Payload は後片付けジョブのペイロードです。
type Payload struct {
	TaskID string `json:"taskId"`
}

// Cleaner はジョブから呼び出される後片付け処理です。
type Cleaner interface {
	ClearInputs(ctx context.Context, taskID string) error
	DropResult(ctx context.Context, taskID string) error
}

// Scheduler は後片付けを呼び出し元とは独立に実行するよう予約します。
type Scheduler interface {
	ScheduleInputCleanup(ctx context.Context, taskID string) error
	ScheduleResultRemoval(ctx context.Context, taskID string) error
}

func kindOf(jobType string) string {
	switch jobType {
	case TypeClearInputs:
		return "inputs"
	case TypeDropResult:
		return "result"
	default:
		return "unknown"
	}
}

// execute はジョブ種別に応じて Cleaner を呼び出し、結果をメトリクスに記録します。
func execute(ctx context.Context, cleaner Cleaner, jobType, taskID string) error {
	if cleaner == nil {
		return ErrNotBound
	}
	if taskID == "" {
		return fmt.Errorf("missing taskId for %s", jobType)
	}

	var err error
	switch jobType {
	case TypeClearInputs:
		err = cleaner.ClearInputs(ctx, taskID)
	case TypeDropResult:
		err = cleaner.DropResult(ctx, taskID)
	default:
		err = fmt.Errorf("unknown job type %q", jobType)
	}

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	metrics.CleanupJobs.WithLabelValues(kindOf(jobType), outcome).Inc()
	return err
}
