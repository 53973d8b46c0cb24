// Package files は保存済み成果物の登録簿（File Registry）を提供します。
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/logging"
	"github.com/yourusername/paper-tasks/internal/metrics"
	"github.com/yourusername/paper-tasks/internal/models"
	"github.com/yourusername/paper-tasks/internal/storage"
)

// Registry はファイルの登録情報と物理的な保存先を一貫して管理します。
type Registry struct {
	db      *gorm.DB
	backend storage.Backend
	logger  *zap.Logger
}

// NewRegistry は Registry を作成します。
func NewRegistry(db *gorm.DB, backend storage.Backend, logger *zap.Logger) *Registry {
	return &Registry{db: db, backend: backend, logger: logging.OrNop(logger)}
}

// Backend は登録簿が利用する保存先です。
func (r *Registry) Backend() storage.Backend {
	return r.backend
}

// New は未保存の File を作成します。拡張子が無い名前は InvalidFile です。
// task が nil の場合はタスクに属さないファイルになります。
func New(task *models.Task, filename, contentType string) (*models.File, error) {
	name, ext, ok := models.SplitFilename(filename)
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidFile, fmt.Sprintf("ファイル名 %q に拡張子がありません。", filename), nil)
	}
	file := &models.File{
		Name:        name,
		Extension:   ext,
		ContentType: contentType,
	}
	if task != nil {
		id := task.ID
		file.TaskID = &id
	}
	return file, nil
}

// Lookup はロケーションに一致する File を返します。存在しない場合は nil, nil です。
func (r *Registry) Lookup(ctx context.Context, location string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).Where("path = ?", location).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByTask はタスクに添付された入力ファイルを添付順に返します。
func (r *Registry) ListByTask(ctx context.Context, taskID string) ([]models.File, error) {
	var list []models.File
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Upload は strategy で保存し、パスを設定して永続化します。
// 永続化に失敗した場合は保存済みの実体を削除してからエラーを返します。
func (r *Registry) Upload(ctx context.Context, file *models.File, strategy storage.Strategy, destination string) (string, error) {
	location, err := strategy.Upload(ctx, destination)
	if err != nil {
		return "", fmt.Errorf("ファイルの保存に失敗しました: %w", err)
	}

	file.Path = location
	if err := r.db.WithContext(ctx).Save(file).Error; err != nil {
		file.Path = ""
		removed, delErr := strategy.Delete(context.WithoutCancel(ctx), location)
		if delErr != nil || !removed {
			r.logger.Warn("failed to roll back stored artifact",
				zap.String("location", location),
				zap.Bool("removed", removed),
				zap.Error(delErr),
			)
		}
		return "", fmt.Errorf("ファイル情報の保存に失敗しました: %w", err)
	}

	metrics.FilesUploaded.Inc()
	return location, nil
}

// Update は updated を更新します。
func (r *Registry) Update(ctx context.Context, file *models.File) error {
	return r.db.WithContext(ctx).Model(file).Update("updated_at", time.Now()).Error
}

// Delete は実体を削除してから登録情報を削除します。
// 実体の削除に失敗した場合や実体が無かった場合は登録情報を残して false を返します。
func (r *Registry) Delete(ctx context.Context, file *models.File, strategy storage.Strategy) (bool, error) {
	if !file.IsUploaded() {
		return false, apperr.New(apperr.CodeFileNotFound, "ファイルが保存されていません。", nil)
	}

	removed, err := strategy.Delete(ctx, file.Path)
	if err != nil {
		r.logger.Warn("physical delete failed",
			zap.String("location", file.Path),
			zap.Error(err),
		)
		return false, nil
	}
	if !removed {
		return false, nil
	}
	if file.ID == 0 {
		return true, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&models.File{}, "id = ?", file.ID).Error
	})
	if err != nil {
		return false, fmt.Errorf("ファイル情報の削除に失敗しました: %w", err)
	}
	return true, nil
}

// Discard は実体のみを削除し、登録情報は残します。実体が既に無い場合は false を返します。
func (r *Registry) Discard(ctx context.Context, file *models.File) (bool, error) {
	if file == nil || !file.IsUploaded() {
		return false, nil
	}
	return storage.FromExisting(r.backend, file.Path).Delete(ctx, file.Path)
}

// Resolve は実体の絶対的な所在を返します。実体が無い場合は FileNotFound です。
func (r *Registry) Resolve(ctx context.Context, file *models.File) (string, error) {
	if file == nil || !file.IsUploaded() {
		return "", apperr.New(apperr.CodeFileNotFound, "ファイルが見つかりません。", nil)
	}
	info, err := r.backend.Stat(ctx, file.Path)
	if err != nil {
		return "", r.notFound(file, err)
	}
	return info.Locator, nil
}

// Open は実体を読み込み用に開きます。
func (r *Registry) Open(ctx context.Context, file *models.File) (io.ReadCloser, storage.Info, error) {
	if file == nil || !file.IsUploaded() {
		return nil, storage.Info{}, apperr.New(apperr.CodeFileNotFound, "ファイルが見つかりません。", nil)
	}
	rc, info, err := r.backend.Open(ctx, file.Path)
	if err != nil {
		return nil, storage.Info{}, r.notFound(file, err)
	}
	return rc, info, nil
}

// Read は実体をすべて読み込みます。
func (r *Registry) Read(ctx context.Context, file *models.File) ([]byte, error) {
	rc, _, err := r.Open(ctx, file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *Registry) notFound(file *models.File, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidLocation) {
		return apperr.New(apperr.CodeFileNotFound, fmt.Sprintf("%s が見つかりません。", file.FullName()), err)
	}
	return err
}
