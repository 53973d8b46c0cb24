package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/auth"
	"github.com/yourusername/paper-tasks/internal/files"
	"github.com/yourusername/paper-tasks/internal/models"
)

func (h *Handler) startTask(c *gin.Context) {
	task, err := h.tasks.Create(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentTask(task))
}

func (h *Handler) getTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"), auth.CurrentUser(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

func (h *Handler) cancelTask(c *gin.Context) {
	task, err := h.tasks.Cancel(c.Request.Context(), c.Param("id"), auth.CurrentUser(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

// downloadTask は成果物を送信し、送信し終えた場合のみタスクを downloaded にします。
func (h *Handler) downloadTask(c *gin.Context) {
	ctx := c.Request.Context()
	delivery, err := h.tasks.Download(ctx, c.Param("id"), auth.CurrentUser(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	defer delivery.Body.Close()

	streamAttachment(c, delivery.File.FullName(), delivery.File.ContentType, delivery.Size, delivery.Body)
	if ctx.Err() != nil || len(c.Errors) > 0 {
		h.logger.Info("download interrupted", zap.String("task_id", delivery.Task.ID))
		return
	}
	if err := h.tasks.Delivered(ctx, delivery.Task.ID); err != nil {
		h.logger.Warn("failed to mark task downloaded", zap.String("task_id", delivery.Task.ID), zap.Error(err))
	}
}

// uploadFiles は task_id で指定したタスクに入力ファイルを添付します。
func (h *Handler) uploadFiles(c *gin.Context) {
	taskID, ok := taskIDQuery(c)
	if !ok {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "task_id を指定してください。", nil))
		return
	}

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
	if err := h.checkSize(headers); err != nil {
		h.respondWithError(c, err)
		return
	}

	for _, fh := range headers {
		if _, err := files.New(nil, fh.Filename, ""); err != nil {
			h.respondWithError(c, err)
			return
		}
	}

	caller := auth.CurrentUser(c)
	attached := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		f, contentType, err := openUpload(fh)
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		file, err := h.tasks.AttachFile(c.Request.Context(), taskID, caller, fh.Filename, contentType, f)
		f.Close()
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		attached = append(attached, *file)
	}
	c.JSON(http.StatusCreated, presentFiles(attached))
}

func (h *Handler) listFiles(c *gin.Context) {
	taskID, ok := taskIDQuery(c)
	if !ok {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "task_id を指定してください。", nil))
		return
	}
	list, err := h.tasks.ListFiles(c.Request.Context(), taskID, auth.CurrentUser(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentFiles(list))
}

func taskIDQuery(c *gin.Context) (string, bool) {
	id := c.Query("task_id")
	return id, id != ""
}
