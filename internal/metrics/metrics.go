// Package metrics はタスク処理に関する prometheus メトリクスを定義します。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "papertasks"

var (
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total tasks created.",
	})

	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_runs_total",
		Help:      "Transformation runs, labelled by process and outcome.",
	}, []string{"process", "outcome"})

	TaskRunDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_run_duration_seconds",
		Help:      "Wall time of a transformation run in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"process"})

	FilesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_uploaded_total",
		Help:      "Files persisted through the registry.",
	})

	CleanupJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_jobs_total",
		Help:      "Deferred cleanup executions, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)
