// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverLocal = "local"
	StorageDriverMinIO = "minio"

	bytesPerMB = 1_000_000
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port     string // APIサーバーのポート番号
	GinMode  string // Ginの実行モード (debug, release, test)
	LogLevel string // zap のログレベル

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// アップロード制限
	MaxUploadSizeMB int64 // 1リクエストあたりの合計アップロードサイズ上限（MB）

	// データベース
	DatabaseDSN string

	// ストレージ設定
	StorageDriver  string // local または minio
	StorageDir     string // local ドライバのベースディレクトリ
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// ジョブ/ロック設定
	RedisURL           string // 空の場合はプロセス内でクリーンアップとロックを行う
	TaskLockTTLSeconds int

	// 認証
	JWTSecret     string
	JWTTTLMinutes int
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 100),

		DatabaseDSN: getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=paper_tasks port=5432 sslmode=disable"),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverLocal)),
		StorageDir:     getEnv("STORAGE_DIR", "static"),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "paper-tasks"),
		MinIOUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),

		RedisURL:           getEnv("REDIS_URL", ""),
		TaskLockTTLSeconds: getEnvAsInt("TASK_LOCK_TTL_SECONDS", 600),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTLMinutes: getEnvAsInt("JWT_TTL_MINUTES", 30),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverLocal:
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the local storage driver")
		}
	case StorageDriverMinIO:
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}

	// 本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required in release mode")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
	}

	return nil
}

// MaxUploadBytes は合計アップロード上限をバイト数で返します。
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB * bytesPerMB
}

// AllowedOrigins はカンマ区切りの CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// TaskLockTTL はタスク実行ロックの有効期間です。
func (c *Config) TaskLockTTL() time.Duration {
	if c.TaskLockTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TaskLockTTLSeconds) * time.Second
}

// JWTTTL はアクセストークンの有効期間です。
func (c *Config) JWTTTL() time.Duration {
	if c.JWTTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
