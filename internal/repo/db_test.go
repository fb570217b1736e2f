package repo

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

// newTestDB opens a fresh on-disk SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "no", "such", "dir.db")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AppliesPragmas(t *testing.T) {
	db := newTestDB(t)

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want wal", mode)
	}

	var fk int
	if err := db.Raw("PRAGMA foreign_keys;").Scan(&fk).Error; err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d; want 1", fk)
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{"users", "characters", "home_characters", "conversations", "messages"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %q", table)
		}
	}
}
