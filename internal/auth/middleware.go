package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/models"
)

// ContextUserKey は、ハンドラー間で認証済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// Authenticate は Authorization ヘッダーのベアラートークンを検証するミドルウェアです。
// ヘッダーが無い場合は匿名として続行します。エラーは c.Error に積んで中断します。
func (m *Manager) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			_ = c.Error(apperr.New(apperr.CodeUnauthorized, "Authorization ヘッダーの形式が正しくありません。", nil))
			c.Abort()
			return
		}

		user, err := m.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireUser は認証済みユーザーがいない場合に Unauthorized で中断します。Authenticate の後に置いてください。
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			_ = c.Error(apperr.New(apperr.CodeUnauthorized, "ログインが必要です。", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser は認証済みユーザーを返します。匿名の場合は nil です。
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
