package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/auth"
	"github.com/yourusername/paper-tasks/internal/files"
	"github.com/yourusername/paper-tasks/internal/models"
	"github.com/yourusername/paper-tasks/internal/storage"
)

// storeFile はタスクに属さないファイルを利用者の領域に保存します。
func (h *Handler) storeFile(c *gin.Context) {
	form, err := h.readForm(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	defer form.RemoveAll()

	headers := formFiles(form)
	if len(headers) == 0 {
		h.respondWithError(c, apperr.New(apperr.CodeNoInputFile, "アップロードされたファイルが見つかりません。", nil))
		return
	}
	fh := headers[0]
	if err := h.checkSize(headers[:1]); err != nil {
		h.respondWithError(c, err)
		return
	}

	f, contentType, err := openUpload(fh)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	defer f.Close()

	file, err := files.New(nil, fh.Filename, contentType)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	user := auth.CurrentUser(c)
	strategy := storage.FromStream(h.registry.Backend(), f, fh.Filename, contentType)
	if _, err := h.registry.Upload(c.Request.Context(), file, strategy, files.Destination(&user.ID, files.KindFiles)); err != nil {
		h.respondWithError(c, err)
		return
	}
	h.logger.Debug("file stored", zap.Uint("user_id", user.ID), zap.String("location", file.Path))
	c.JSON(http.StatusCreated, presentFile(file))
}

func (h *Handler) getStoredFile(c *gin.Context) {
	file, ok := h.ownedFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, presentFile(file))
}

func (h *Handler) deleteStoredFile(c *gin.Context) {
	file, ok := h.ownedFile(c)
	if !ok {
		return
	}
	deleted, err := h.registry.Delete(c.Request.Context(), file, storage.FromExisting(h.registry.Backend(), file.Path))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) downloadStoredFile(c *gin.Context) {
	file, ok := h.ownedFile(c)
	if !ok {
		return
	}
	body, info, err := h.registry.Open(c.Request.Context(), file)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	defer body.Close()
	streamAttachment(c, file.FullName(), file.ContentType, info.Size, body)
}

// ownedFile は file_url のファイルを検索し、呼び出し元の所有でなければエラーを返します。
func (h *Handler) ownedFile(c *gin.Context) (*models.File, bool) {
	location := c.Query("file_url")
	if location == "" {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "file_url を指定してください。", nil))
		return nil, false
	}
	file, err := h.registry.Lookup(c.Request.Context(), location)
	if err != nil {
		h.respondWithError(c, err)
		return nil, false
	}
	if file == nil {
		h.respondWithError(c, apperr.New(apperr.CodeFileNotFound, "ファイルが見つかりません。", nil))
		return nil, false
	}
	if !files.OwnedBy(file, auth.CurrentUser(c)) {
		h.respondWithError(c, apperr.New(apperr.CodeFileAccessDenied, "このファイルにアクセスする権限がありません。", nil))
		return nil, false
	}
	return file, true
}
