package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
)

// ErrorHeader はエラーコードを載せるレスポンスヘッダーです。
const ErrorHeader = "X-Error"

func (h *Handler) respondWithError(c *gin.Context, err error) {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		if appErr.Code == apperr.CodeInternalError {
			h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		writeError(c, appErr.Code, appErr.Message)
	case errors.Is(err, context.Canceled):
		writeError(c, apperr.CodeRequestCanceled, "リクエストがキャンセルされました。")
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, apperr.CodeInternalError, "サーバー内部でエラーが発生しました。")
	}
}

func writeError(c *gin.Context, code apperr.Code, message string) {
	c.Header(ErrorHeader, string(code))
	c.AbortWithStatusJSON(code.HTTPStatus(), gin.H{
		"code":    code,
		"message": message,
	})
}

// renderErrors はミドルウェアが c.Error に積んだエラーをレスポンスにします。
func (h *Handler) renderErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		h.respondWithError(c, c.Errors.Last().Err)
	}
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func streamAttachment(c *gin.Context, filename, contentType string, size int64, body io.Reader) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	encodedName := url.PathEscape(filename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", quoteEscaper.Replace(filename), encodedName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, contentType, body, nil)
}
