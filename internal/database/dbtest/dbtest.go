// Package dbtest はテスト用に SQLite のデータベースを用意します。
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yourusername/paper-tasks/internal/database"
)

// New はマイグレーションと参照行の投入を済ませた一時データベースを返します。
func New(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := filepath.Join(tb.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), database.Config())
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}
	if err := database.Seed(db, nil); err != nil {
		tb.Fatalf("failed to seed: %v", err)
	}
	return db
}
