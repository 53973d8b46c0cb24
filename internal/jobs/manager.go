package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/logging"
)

const maxRetry = 3

// Manager は asynq を使って後片付けジョブの投入と実行を担います。
type Manager struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	cleaner Cleaner
	logger  *zap.Logger
}

var _ Scheduler = (*Manager)(nil)

// NewManager は Manager を初期化します。
func NewManager(redisURL string, logger *zap.Logger) (*Manager, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	logger = logging.OrNop(logger).Named("jobs")

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueCleanup: 1,
			},
			Logger: logger.Sugar(),
		},
	)

	m := &Manager{
		client: asynq.NewClient(opt),
		server: server,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
	m.mux.HandleFunc(TypeClearInputs, m.handle)
	m.mux.HandleFunc(TypeDropResult, m.handle)
	return m, nil
}

// Bind はジョブから呼び出す Cleaner を設定します。StartWorkers より前に呼び出してください。
func (m *Manager) Bind(cleaner Cleaner) {
	m.cleaner = cleaner
}

// StartWorkers は asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() error {
	if m.cleaner == nil {
		return ErrNotBound
	}
	return m.server.Start(m.mux)
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	m.server.Shutdown()
	return m.client.Close()
}

// ScheduleInputCleanup はタスクの入力ファイル削除を予約します。
func (m *Manager) ScheduleInputCleanup(ctx context.Context, taskID string) error {
	return m.enqueue(ctx, TypeClearInputs, taskID)
}

// ScheduleResultRemoval は成果物の実体削除を予約します。
func (m *Manager) ScheduleResultRemoval(ctx context.Context, taskID string) error {
	return m.enqueue(ctx, TypeDropResult, taskID)
}

func (m *Manager) enqueue(ctx context.Context, jobType, taskID string) error {
	if taskID == "" {
		return errors.New("taskID is required")
	}
	body, err := json.Marshal(Payload{TaskID: taskID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(jobType, body, asynq.Queue(queueCleanup), asynq.MaxRetry(maxRetry))
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	m.logger.Debug("cleanup job enqueued",
		zap.String("type", jobType),
		zap.String("task_id", taskID),
		zap.String("job_id", info.ID),
	)
	return nil
}

func (m *Manager) handle(ctx context.Context, task *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TaskID == "" {
		return fmt.Errorf("missing taskId in payload: %w", asynq.SkipRetry)
	}

	if err := execute(ctx, m.cleaner, task.Type(), payload.TaskID); err != nil {
		m.logger.Warn("cleanup job failed",
			zap.String("type", task.Type()),
			zap.String("task_id", payload.TaskID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
