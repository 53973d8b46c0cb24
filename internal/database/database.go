// Package database はリレーショナルストアへの接続、マイグレーション、参照行の投入を扱います。
package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/paper-tasks/internal/models"
)

// Open は DSN から PostgreSQL への接続を作成します。
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// Config は接続共通の gorm 設定です。
// tasks と files は相互に参照するため、外部キーはテーブル作成後に追加します。
func Config() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	}
}

// Migrate はテーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.TaskStatus{},
		&models.TaskProcess{},
		&models.Task{},
		&models.File{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	migrator := db.Migrator()
	for _, name := range []string{"Status", "Process", "Result", "Files"} {
		if migrator.HasConstraint(&models.Task{}, name) {
			continue
		}
		if err := migrator.CreateConstraint(&models.Task{}, name); err != nil {
			return fmt.Errorf("create constraint %s: %w", name, err)
		}
	}
	return nil
}

// Seed はコード上の列挙値のうち未登録の ID だけを投入します。既存行は上書きしません。
func Seed(db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	statuses := models.Statuses()
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&statuses)
	if res.Error != nil {
		return fmt.Errorf("seed task statuses: %w", res.Error)
	}
	log.Debug("task statuses seeded", zap.Int64("inserted", res.RowsAffected))

	processes := models.Processes()
	res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&processes)
	if res.Error != nil {
		return fmt.Errorf("seed task processes: %w", res.Error)
	}
	log.Debug("task processes seeded", zap.Int64("inserted", res.RowsAffected))

	return nil
}
