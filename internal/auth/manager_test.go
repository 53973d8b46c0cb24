package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/config"
	"github.com/yourusername/paper-tasks/internal/database/dbtest"
	"github.com/yourusername/paper-tasks/internal/models"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(dbtest.New(t), &config.Config{JWTSecret: "test-secret", JWTTTLMinutes: 5}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return m
}

func signUp(t *testing.T, m *Manager, email string) *models.User {
	t.Helper()
	user, err := m.SignUp(context.Background(), SignUpInput{Email: email, Password: "password1", FirstName: "A"})
	require.NoError(t, err)
	return user
}

func TestSignUpAndSignIn(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	user := signUp(t, m, "Someone@Example.com ")
	assert.Equal(t, "someone@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "password1", user.Password)

	_, err := m.SignUp(ctx, SignUpInput{Email: "someone@example.com", Password: "password2"})
	assert.True(t, apperr.HasCode(err, apperr.CodeEmailAlreadyRegistered), "got %v", err)

	token, err := m.SignIn(ctx, "127.0.0.1", "someone@example.com", "password1")
	require.NoError(t, err)

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	_, err = m.SignIn(ctx, "127.0.0.1", "someone@example.com", "nope")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials), "got %v", err)
	_, err = m.SignIn(ctx, "127.0.0.1", "nobody@example.com", "password1")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials), "got %v", err)
}

func TestSignInInactiveUser(t *testing.T) {
	m := newManager(t)
	user := signUp(t, m, "idle@example.com")
	require.NoError(t, m.db.Model(user).Update("is_active", false).Error)

	_, err := m.SignIn(context.Background(), "10.0.0.1", "idle@example.com", "password1")
	assert.True(t, apperr.HasCode(err, apperr.CodeInactiveUser), "got %v", err)
}

func TestSignInThrottlesPerIP(t *testing.T) {
	m := newManager(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	signUp(t, m, "user@example.com")
	ctx := context.Background()

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := m.SignIn(ctx, "1.2.3.4", "user@example.com", "wrong")
		require.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials), "attempt %d: %v", i, err)
	}

	_, err := m.SignIn(ctx, "1.2.3.4", "user@example.com", "password1")
	assert.True(t, apperr.HasCode(err, apperr.CodeTooManyAttempts), "got %v", err)
	assert.Equal(t, lockDuration, m.RetryAfter("1.2.3.4"))

	_, err = m.SignIn(ctx, "5.6.7.8", "user@example.com", "password1")
	assert.NoError(t, err)

	now = now.Add(lockDuration)
	_, err = m.SignIn(ctx, "1.2.3.4", "user@example.com", "password1")
	assert.NoError(t, err)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	user := signUp(t, m, "user@example.com")

	_, err := m.Resolve(ctx, "not-a-jwt")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), "got %v", err)

	other, err := NewManager(m.db, &config.Config{JWTSecret: "other-secret"}, nil)
	require.NoError(t, err)
	foreign, err := other.IssueToken(user)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, foreign)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), "got %v", err)

	issued := time.Now()
	m.now = func() time.Time { return issued }
	expired, err := m.IssueToken(user)
	require.NoError(t, err)
	m.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = m.Resolve(ctx, expired)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), "got %v", err)

	m.now = time.Now
	ghost, err := m.IssueToken(&models.User{Email: "ghost@example.com"})
	require.NoError(t, err)
	_, err = m.Resolve(ctx, ghost)
	assert.True(t, apperr.HasCode(err, apperr.CodeUserNotFound), "got %v", err)
}

func TestAuthenticateMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	user := signUp(t, m, "user@example.com")
	token, err := m.IssueToken(user)
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			code := apperr.CodeOf(c.Errors.Last().Err)
			c.JSON(code.HTTPStatus(), gin.H{"code": code})
		}
	})
	router.Use(m.Authenticate())
	router.GET("/whoami", func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.Email)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	router.GET("/private", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		path   string
		header string
		status int
		body   string
	}{
		{path: "/whoami", status: http.StatusOK, body: "anonymous"},
		{path: "/whoami", header: "Bearer " + token, status: http.StatusOK, body: "user@example.com"},
		{path: "/whoami", header: "Bearer broken", status: http.StatusUnauthorized},
		{path: "/whoami", header: "Basic abc", status: http.StatusUnauthorized},
		{path: "/private", status: http.StatusUnauthorized},
		{path: "/private", header: "bearer " + token, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("%s %q: expected status %d, got %d (%s)", tc.path, tc.header, tc.status, rec.Code, rec.Body.String())
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s: expected body %q, got %q", tc.path, tc.body, rec.Body.String())
		}
	}
}
