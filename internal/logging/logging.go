// Package logging は zap ロガーの生成と gin 用のリクエストログを提供します。
package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New は実行モードに応じたロガーを返します。release では JSON、それ以外は開発用のコンソール出力です。
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == gin.ReleaseMode {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// OrNop は nil の場合に何も出力しないロガーを返します。
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// RequestLogger は 1 リクエストにつき 1 行のアクセスログを出力するミドルウェアです。
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if code := c.Writer.Header().Get("X-Error"); code != "" {
			fields = append(fields, zap.String("error_code", code))
		}

		if c.Writer.Status() >= 500 {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}

// Recovery は panic を捕捉して 500 を返すミドルウェアです。
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	logger = OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", recovered),
		)
		c.Header("X-Error", "InternalError")
		c.AbortWithStatusJSON(500, gin.H{
			"code":    "InternalError",
			"message": "サーバー内部でエラーが発生しました。",
		})
	})
}
