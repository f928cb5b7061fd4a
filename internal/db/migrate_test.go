package db

import (
	"testing"

	"github.com/connvault/connvault/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSeedsConfigSingleton(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var cfg models.AppConfig
	if errFind := conn.First(&cfg, models.AppConfigID).Error; errFind != nil {
		t.Fatalf("load config row: %v", errFind)
	}
	if !cfg.EnableAuth {
		t.Fatalf("expected auth enforcement enabled by default")
	}
	if cfg.EncryptionKey != "" {
		t.Fatalf("expected empty encryption key on fresh install, got %q", cfg.EncryptionKey)
	}

	// Re-running must not duplicate the singleton.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	var count int64
	if errCount := conn.Model(&models.AppConfig{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count config rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 config row, got %d", count)
	}
}

func TestMigrateConnectionColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"url_id", "rating_up", "rating_down", "usage_count", "url_server_comment"} {
		if !conn.Migrator().HasColumn("connections", column) {
			t.Fatalf("connections missing column %s", column)
		}
	}
	for _, column := range []string{"rating", "usage_count", "first_used_at", "last_used_at"} {
		if !conn.Migrator().HasColumn("connection_user_engagement", column) {
			t.Fatalf("connection_user_engagement missing column %s", column)
		}
	}
}
