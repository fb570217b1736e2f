// Package repo is the persistence layer for domain entities, backed by GORM
// over the pure-Go SQLite driver. This file holds database bootstrapping and
// schema migration.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// OpenSQLite opens (or creates) the SQLite database at path, applies the
// PRAGMAs the server relies on, and sizes the connection pool.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces as an opaque sqlite error later,
	// so check it up front.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing attaches the GORM OpenTelemetry plugin so queries appear as
// spans under the active request trace. Metrics are disabled; Prometheus
// already covers the HTTP layer.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Character{},
		&domain.HomeCharacter{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.Idempotency{},
	)
}
