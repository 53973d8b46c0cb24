// Package httpapi はタスク、ファイル、PDF 処理、アカウントの HTTP エンドポイントを提供します。
package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/auth"
	"github.com/yourusername/paper-tasks/internal/files"
	"github.com/yourusername/paper-tasks/internal/logging"
	"github.com/yourusername/paper-tasks/internal/storage"
	"github.com/yourusername/paper-tasks/internal/tasks"
)

// multipartOverhead はアップロード上限に加えて許容するフォーム境界などの余白です。
const multipartOverhead = 1 << 20

// Options は Handler の依存関係です。
type Options struct {
	Tasks          *tasks.Service
	Registry       *files.Registry
	Auth           *auth.Manager
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// Handler は HTTP リクエストをサービス層へ橋渡しします。
type Handler struct {
	tasks          *tasks.Service
	registry       *files.Registry
	auth           *auth.Manager
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHandler は Handler を作成します。
func NewHandler(opts Options) *Handler {
	return &Handler{
		tasks:          opts.Tasks,
		registry:       opts.Registry,
		auth:           opts.Auth,
		logger:         logging.OrNop(opts.Logger).Named("http"),
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// Register はルートを登録します。
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("", h.renderErrors(), h.auth.Authenticate())

	api.POST("/tasks/start", h.startTask)
	api.GET("/tasks/:id", h.getTask)
	api.PUT("/tasks/cancel/:id", h.cancelTask)
	api.GET("/tasks/download/:id", h.downloadTask)

	api.POST("/files", h.uploadFiles)
	api.GET("/files", h.listFiles)

	utilities := api.Group("/pdf-utilities")
	utilities.POST("/merge", h.merge)
	utilities.POST("/lock", h.lock)
	utilities.POST("/unlock", h.unlock)
	utilities.POST("/split/range", h.splitRange)
	utilities.POST("/split/pages", h.splitPages)

	storageRoutes := api.Group("/file-storage", auth.RequireUser())
	storageRoutes.POST("", h.storeFile)
	storageRoutes.GET("", h.getStoredFile)
	storageRoutes.DELETE("", h.deleteStoredFile)
	storageRoutes.GET("/download", h.downloadStoredFile)

	accounts := api.Group("/accounts")
	accounts.POST("/sign-up", h.signUp)
	accounts.POST("/sign-in", h.signIn)
	accounts.GET("/me", auth.RequireUser(), h.me)
}

// readForm は multipart フォームを読み込みます。呼び出し側で RemoveAll してください。
func (h *Handler) readForm(c *gin.Context) (*multipart.Form, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, h.tooLarge()
		}
		return nil, apperr.New(apperr.CodeInvalidInput, "multipart/form-data でファイルを送信してください。", err)
	}
	return form, nil
}

// formFiles は files[] / files / file のいずれかで送られたファイルを返します。
func formFiles(form *multipart.Form) []*multipart.FileHeader {
	for _, key := range []string{"files[]", "files", "file", "file[]"} {
		if list := form.File[key]; len(list) > 0 {
			return list
		}
	}
	return nil
}

// checkSize はアップロードの合計サイズを検査します。
func (h *Handler) checkSize(headers []*multipart.FileHeader) error {
	if h.maxUploadBytes <= 0 {
		return nil
	}
	var total int64
	for _, fh := range headers {
		total += fh.Size
	}
	if total > h.maxUploadBytes {
		return h.tooLarge()
	}
	return nil
}

func (h *Handler) tooLarge() error {
	return apperr.New(apperr.CodeFileTooLarge, "アップロードサイズが上限を超えています。", nil)
}

// openUpload はアップロードを開き、内容から MIME タイプを判定します。
func openUpload(fh *multipart.FileHeader) (multipart.File, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", apperr.New(apperr.CodeInvalidFile, "アップロードされたファイルを読み込めませんでした。", err)
	}
	contentType, err := storage.DetectContentType(f)
	if err != nil {
		f.Close()
		return nil, "", apperr.New(apperr.CodeInvalidFile, "アップロードされたファイルを読み込めませんでした。", err)
	}
	return f, contentType, nil
}
