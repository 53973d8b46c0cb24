package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signUp(c *gin.Context) {
	var in auth.SignUpInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "メールアドレスと 6 文字以上のパスワードを指定してください。", err))
		return
	}
	user, err := h.auth.SignUp(c.Request.Context(), in)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) signIn(c *gin.Context) {
	var in signInRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "メールアドレスとパスワードを指定してください。", err))
		return
	}
	ip := c.ClientIP()
	token, err := h.auth.SignIn(c.Request.Context(), ip, in.Email, in.Password)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeTooManyAttempts) {
			seconds := int(math.Ceil(h.auth.RetryAfter(ip).Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   auth.TokenType,
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}
