package infra

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewSQLiteDB opens the local SQLite store used when no PostgreSQL URL is
// configured. GORM's own logging is routed through the service logger.
func NewSQLiteDB(cfg *Config, logger Logger) (*gorm.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	level := gormlogger.Warn
	if cfg.AppEnv == "development" {
		level = gormlogger.Info
	}
	gl := gormlogger.New(&logger, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{Logger: gl, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
