// Package tasks はタスクの状態遷移（作成、添付、実行、取消、ダウンロード）と後片付けを管理します。
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/files"
	"github.com/yourusername/paper-tasks/internal/jobs"
	"github.com/yourusername/paper-tasks/internal/logging"
	"github.com/yourusername/paper-tasks/internal/metrics"
	"github.com/yourusername/paper-tasks/internal/models"
	"github.com/yourusername/paper-tasks/internal/pdf"
	"github.com/yourusername/paper-tasks/internal/storage"
)

const defaultLockTTL = 5 * time.Minute

// Deps は Service の依存関係です。
type Deps struct {
	DB         *gorm.DB
	Registry   *files.Registry
	Dispatcher *pdf.Dispatcher
	Locker     jobs.Locker
	Scheduler  jobs.Scheduler
	Logger     *zap.Logger
	LockTTL    time.Duration
}

// Service はタスクのライフサイクルを扱います。状態は毎回リレーショナルストアから読み直します。
type Service struct {
	db         *gorm.DB
	registry   *files.Registry
	dispatcher *pdf.Dispatcher
	locker     jobs.Locker
	scheduler  jobs.Scheduler
	logger     *zap.Logger
	lockTTL    time.Duration
}

var _ jobs.Cleaner = (*Service)(nil)

// NewService は Service を作成します。
func NewService(d Deps) *Service {
	ttl := d.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	locker := d.Locker
	if locker == nil {
		locker = jobs.NewLocalLocker()
	}
	return &Service{
		db:         d.DB,
		registry:   d.Registry,
		dispatcher: d.Dispatcher,
		locker:     locker,
		scheduler:  d.Scheduler,
		logger:     logging.OrNop(d.Logger).Named("tasks"),
		lockTTL:    ttl,
	}
}

// Delivery はダウンロード対象の成果物です。Body は呼び出し側で閉じてください。
type Delivery struct {
	Task *models.Task
	File *models.File
	Body io.ReadCloser
	Size int64
}

// Create は新しいタスクを作成します。owner が nil の場合は所有者の無いタスクになります。
func (s *Service) Create(ctx context.Context, owner *models.User) (*models.Task, error) {
	task := &models.Task{
		StatusID:  models.StatusCreated,
		ProcessID: models.ProcessUndefined,
	}
	if owner != nil {
		id := owner.ID
		task.UserID = &id
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	metrics.TasksCreated.Inc()
	s.logger.Info("task created", zap.String("task_id", task.ID))
	return s.load(ctx, task.ID)
}

// Get はタスクを返します。
func (s *Service) Get(ctx context.Context, taskID string, caller *models.User) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CheckOwnership(task, caller) {
		return nil, forbidden()
	}
	return task, nil
}

// ListFiles はタスクに添付された入力ファイルを添付順に返します。
func (s *Service) ListFiles(ctx context.Context, taskID string, caller *models.User) ([]models.File, error) {
	task, err := s.Get(ctx, taskID, caller)
	if err != nil {
		return nil, err
	}
	return task.Files, nil
}

// AttachFile はアップロードされたファイルをタスクの入力として保存します。
func (s *Service) AttachFile(ctx context.Context, taskID string, caller *models.User, filename, contentType string, r io.Reader) (*models.File, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CheckOwnership(task, caller) {
		return nil, forbidden()
	}
	switch task.StatusID {
	case models.StatusCompleted, models.StatusDownloaded:
		return nil, alreadyCompleted()
	case models.StatusCanceled:
		return nil, closed(task)
	}

	file, err := files.New(task, filename, contentType)
	if err != nil {
		return nil, err
	}
	backend := s.registry.Backend()
	if _, err := s.registry.Upload(ctx, file, storage.FromStream(backend, r, filename, contentType), files.Destination(task.UserID, files.KindUploads)); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, task.ID); err != nil {
		return nil, err
	}

	s.logger.Debug("file attached",
		zap.String("task_id", task.ID),
		zap.String("file", file.FullName()),
		zap.String("location", file.Path),
	)
	return file, nil
}

// Run はタスクに処理を実行し、結果を保存して完了にします。
// 処理が失敗した場合はタスクを failed にしてから元のエラーを返します。
func (s *Service) Run(ctx context.Context, taskID string, caller *models.User, req pdf.Request) (*models.Task, error) {
	release, err := s.locker.Acquire(ctx, runLockKey(taskID), s.lockTTL)
	if err != nil {
		if errors.Is(err, jobs.ErrLocked) {
			return nil, apperr.New(apperr.CodeTaskBusy, "このタスクは処理中です。", err)
		}
		return nil, fmt.Errorf("タスクのロック取得に失敗しました: %w", err)
	}
	defer release()

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CheckOwnership(task, caller) {
		return nil, forbidden()
	}
	if err := runnable(task); err != nil {
		return nil, err
	}
	if err := s.begin(ctx, task, req.Operation.Process()); err != nil {
		return nil, err
	}
	defer s.scheduleInputCleanup(ctx, task.ID)

	process := req.Operation.Process().String()
	start := time.Now()
	runErr := s.execute(ctx, task, req)
	metrics.TaskRunDurationSeconds.WithLabelValues(process).Observe(time.Since(start).Seconds())

	if runErr != nil {
		metrics.TaskRuns.WithLabelValues(process, metrics.OutcomeFailed).Inc()
		if !apperr.HasCode(runErr, apperr.CodeTaskClosed) {
			s.markFailed(ctx, task.ID, runErr)
		}
		return nil, runErr
	}
	metrics.TaskRuns.WithLabelValues(process, metrics.OutcomeOK).Inc()
	s.logger.Info("task completed", zap.String("task_id", task.ID), zap.String("process", process))
	return s.load(ctx, task.ID)
}

// Cancel はタスクを canceled にします。結果が確定したタスクは取り消せません。
func (s *Service) Cancel(ctx context.Context, taskID string, caller *models.User) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CheckOwnership(task, caller) {
		return nil, forbidden()
	}
	if task.IsCompleted() {
		return nil, alreadyCompleted()
	}

	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status_id NOT IN ?", task.ID, []models.StatusID{models.StatusCompleted, models.StatusDownloaded}).
		Updates(map[string]any{"status_id": models.StatusCanceled, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("タスクの取消に失敗しました: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, alreadyCompleted()
	}
	s.logger.Info("task canceled", zap.String("task_id", task.ID))
	return s.load(ctx, task.ID)
}

// Download は成果物を読み込み用に開きます。
// 成果物が無い、または実体が見つからない場合は所有権より先に FileNotFound を返します。
func (s *Service) Download(ctx context.Context, taskID string, caller *models.User) (*Delivery, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Result == nil {
		return nil, apperr.New(apperr.CodeFileNotFound, "このタスクには成果物がありません。", nil)
	}
	if _, err := s.registry.Resolve(ctx, task.Result); err != nil {
		return nil, err
	}
	if !CheckOwnership(task, caller) {
		return nil, apperr.New(apperr.CodeFileAccessDenied, "この成果物にアクセスする権限がありません。", nil)
	}

	body, info, err := s.registry.Open(ctx, task.Result)
	if err != nil {
		return nil, err
	}
	return &Delivery{Task: task, File: task.Result, Body: body, Size: info.Size}, nil
}

// Delivered は成果物の送信後に呼び出します。タスクを downloaded にし、実体の削除を予約します。
func (s *Service) Delivered(ctx context.Context, taskID string) error {
	ctx = context.WithoutCancel(ctx)
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status_id = ?", taskID, models.StatusCompleted).
		Updates(map[string]any{"status_id": models.StatusDownloaded, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("ダウンロード状態の更新に失敗しました: %w", res.Error)
	}

	if err := s.scheduler.ScheduleResultRemoval(ctx, taskID); err != nil {
		s.logger.Warn("failed to schedule result removal", zap.String("task_id", taskID), zap.Error(err))
	}
	return nil
}

// ClearInputs はタスクに添付された入力ファイルを削除します。
func (s *Service) ClearInputs(ctx context.Context, taskID string) error {
	list, err := s.registry.ListByTask(ctx, taskID)
	if err != nil {
		return err
	}

	backend := s.registry.Backend()
	var errs []error
	for i := range list {
		f := &list[i]
		removed, err := s.registry.Delete(ctx, f, storage.FromExisting(backend, f.Path))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !removed {
			s.logger.Debug("input file left in place", zap.String("task_id", taskID), zap.String("location", f.Path))
		}
	}
	return errors.Join(errs...)
}

// DropResult は成果物の実体を削除します。登録情報とタスクとの関連は残します。
func (s *Service) DropResult(ctx context.Context, taskID string) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeTaskNotFound) {
			return nil
		}
		return err
	}
	if task.Result == nil {
		return nil
	}
	removed, err := s.registry.Discard(ctx, task.Result)
	if err != nil {
		return err
	}
	s.logger.Debug("result artifact dropped", zap.String("task_id", taskID), zap.Bool("removed", removed))
	return nil
}

func (s *Service) load(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Process").
		Preload("Result").
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeTaskNotFound, "指定されたタスクは存在しません。", err)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Service) touch(ctx context.Context, taskID string) error {
	return s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Update("updated_at", time.Now()).Error
}

// begin はタスクを in_progress にし、処理種別を記録します。
func (s *Service) begin(ctx context.Context, task *models.Task, process models.ProcessID) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status_id IN ?", task.ID, []models.StatusID{models.StatusCreated, models.StatusInProgress}).
		Updates(map[string]any{"status_id": models.StatusInProgress, "process_id": process, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("タスクの開始に失敗しました: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	fresh, err := s.load(ctx, task.ID)
	if err != nil {
		return err
	}
	if err := runnable(fresh); err != nil {
		return err
	}
	return apperr.New(apperr.CodeTaskBusy, "このタスクは処理中です。", nil)
}

// execute は入力を読み込んで処理し、成果物を保存してタスクを completed にします。
func (s *Service) execute(ctx context.Context, task *models.Task, req pdf.Request) error {
	out, err := s.dispatcher.Dispatch(ctx, req, s.readInputs(ctx, task.Files))
	if err != nil {
		return err
	}

	result, err := files.New(nil, out.Filename, out.ContentType())
	if err != nil {
		return err
	}
	strategy := s.resultStrategy(out)
	if _, err := s.registry.Upload(ctx, result, strategy, files.Destination(task.UserID, files.KindResults)); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status_id = ?", task.ID, models.StatusInProgress).
		Updates(map[string]any{"status_id": models.StatusCompleted, "result_id": result.ID, "updated_at": time.Now()})
	if res.Error == nil && res.RowsAffected > 0 {
		return nil
	}

	// 完了にできなかった成果物は破棄します。
	if _, delErr := s.registry.Delete(context.WithoutCancel(ctx), result, strategy); delErr != nil {
		s.logger.Warn("failed to discard orphaned result", zap.String("task_id", task.ID), zap.Error(delErr))
	}
	if res.Error != nil {
		return fmt.Errorf("タスクの完了に失敗しました: %w", res.Error)
	}
	return apperr.New(apperr.CodeTaskClosed, "処理中にタスクが取り消されました。", nil)
}

func (s *Service) readInputs(ctx context.Context, list []models.File) []pdf.Input {
	inputs := make([]pdf.Input, 0, len(list))
	for i := range list {
		f := &list[i]
		data, err := s.registry.Read(ctx, f)
		inputs = append(inputs, pdf.Input{Name: f.FullName(), Data: data, Err: err})
	}
	return inputs
}

func (s *Service) resultStrategy(out *pdf.Output) storage.Strategy {
	backend := s.registry.Backend()
	if out.Kind == pdf.ResultKindZIP {
		entries := make([]storage.Entry, len(out.Parts))
		for i, p := range out.Parts {
			entries[i] = storage.Entry{Name: p.Name, Body: p.Data}
		}
		return storage.FromBundle(backend, entries, out.Filename)
	}
	return storage.FromWriter(backend, out.Document, out.Filename, out.ContentType())
}

// markFailed はリクエストの取消に関わらず failed を書き込みます。
func (s *Service) markFailed(ctx context.Context, taskID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status_id = ?", taskID, models.StatusInProgress).
		Updates(map[string]any{"status_id": models.StatusFailed, "updated_at": time.Now()}).Error
	if err != nil {
		s.logger.Error("failed to mark task failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	s.logger.Info("task failed",
		zap.String("task_id", taskID),
		zap.String("code", string(apperr.CodeOf(cause))),
		zap.Error(cause),
	)
}

func (s *Service) scheduleInputCleanup(ctx context.Context, taskID string) {
	if err := s.scheduler.ScheduleInputCleanup(context.WithoutCancel(ctx), taskID); err != nil {
		s.logger.Warn("failed to schedule input cleanup", zap.String("task_id", taskID), zap.Error(err))
	}
}

func runLockKey(taskID string) string {
	return "task:run:" + taskID
}

func runnable(task *models.Task) error {
	switch task.StatusID {
	case models.StatusCompleted, models.StatusDownloaded:
		return alreadyCompleted()
	case models.StatusFailed, models.StatusCanceled:
		return closed(task)
	default:
		return nil
	}
}

func forbidden() error {
	return apperr.New(apperr.CodeForbiddenTask, "このタスクを操作する権限がありません。", nil)
}

func alreadyCompleted() error {
	return apperr.New(apperr.CodeTaskAlreadyCompleted, "このタスクは既に完了しています。", nil)
}

func closed(task *models.Task) error {
	return apperr.New(apperr.CodeTaskClosed, fmt.Sprintf("このタスクは %s のため操作できません。", task.StatusID), nil)
}
