package main

import (
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/config"
	"github.com/yourusername/paper-tasks/internal/jobs"
)

// cleanupRunner は後片付けジョブの投入先です。
type cleanupRunner interface {
	jobs.Scheduler
	Bind(cleaner jobs.Cleaner)
}

type jobRuntime struct {
	locker jobs.Locker
	runner cleanupRunner
	start  func() error
	stop   func()
}

// setupJobs は REDIS_URL があれば asynq と Redis ロック、無ければプロセス内の実装を返します。
func setupJobs(cfg *config.Config, logger *zap.Logger) (*jobRuntime, error) {
	if cfg.RedisURL == "" {
		inline := jobs.NewInline(logger)
		logger.Warn("REDIS_URL is not set; cleanup and task locks run in-process")
		return &jobRuntime{
			locker: jobs.NewLocalLocker(),
			runner: inline,
			start:  func() error { return nil },
			stop:   inline.Wait,
		}, nil
	}

	rdb, err := jobs.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	manager, err := jobs.NewManager(cfg.RedisURL, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &jobRuntime{
		locker: jobs.NewRedisLocker(rdb, logger),
		runner: manager,
		start:  manager.StartWorkers,
		stop: func() {
			if err := manager.Shutdown(); err != nil {
				logger.Warn("failed to shut down job manager", zap.Error(err))
			}
			_ = rdb.Close()
		},
	}, nil
}
