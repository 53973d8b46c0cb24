// Package auth はベアラートークンによる認証と、アカウントの登録・ログインを提供します。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/config"
	"github.com/yourusername/paper-tasks/internal/logging"
	"github.com/yourusername/paper-tasks/internal/models"
)

// TokenType はサインイン応答の token_type です。
const TokenType = "bearer"

var (
	loginWindow      = 15 * time.Minute
	lockDuration     = 10 * time.Minute
	maxLoginAttempts = 5
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	logger *zap.Logger

	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewManager は認証マネージャーを作成します。
// JWT_SECRET が空の場合はプロセスごとの乱数鍵を使います（再起動でトークンは無効になります）。
func NewManager(db *gorm.DB, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	logger = logging.OrNop(logger).Named("auth")
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		key, err := generateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		secret = []byte(key)
		logger.Warn("JWT_SECRET is empty, using an ephemeral signing key")
	}
	return &Manager{
		db:       db,
		secret:   secret,
		ttl:      cfg.JWTTTL(),
		logger:   logger,
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}, nil
}

// SignUpInput は登録時の入力です。
type SignUpInput struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SignUp はユーザーを登録します。
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.New(apperr.CodeEmailAlreadyRegistered, "このメールアドレスは既に登録されています。", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}
	if err := m.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}
	m.logger.Info("user signed up", zap.Uint("user_id", user.ID))
	return user, nil
}

// SignIn は資格情報を検証してアクセストークンを返します。
// 失敗が続いた IP は一定時間 TooManyAttempts になります。
func (m *Manager) SignIn(ctx context.Context, ip, email, password string) (string, error) {
	if m.RetryAfter(ip) > 0 {
		return "", apperr.New(apperr.CodeTooManyAttempts, "一定時間後に再度お試しください。", nil)
	}

	var user models.User
	err := m.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		remaining := m.recordFailure(ip)
		m.logger.Info("sign-in failed", zap.String("ip", ip), zap.Int("remaining_attempts", remaining))
		return "", apperr.New(apperr.CodeInvalidCredentials, "メールアドレスまたはパスワードが正しくありません。", nil)
	}
	if !user.IsActive {
		return "", apperr.New(apperr.CodeInactiveUser, "このアカウントは無効化されています。", nil)
	}

	m.resetAttempts(ip)
	return m.IssueToken(&user)
}

// IssueToken はユーザーのアクセストークンを発行します。
func (m *Manager) IssueToken(user *models.User) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve はトークンを検証して対応するユーザーを返します。
func (m *Manager) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || claims.Subject == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "認証情報が無効です。", err)
	}

	var user models.User
	err = m.db.WithContext(ctx).Where("email = ?", claims.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeUserNotFound, "ユーザーが見つかりません。", err)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RetryAfter は ip がロックされている残り時間を返します。ロックされていない場合は 0 です。
func (m *Manager) RetryAfter(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := m.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(ip string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
