package db

import (
	"errors"
	"fmt"

	"github.com/connvault/connvault/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema and seeds the configuration singleton.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.AppConfig{},
		&models.Connection{},
		&models.ConnectionUserEngagement{},
		&models.Category{},
		&models.Type{},
		&models.Memo{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return ensureAppConfig(conn)
}

// ensureAppConfig inserts the one-row config record when missing.
func ensureAppConfig(conn *gorm.DB) error {
	var cfg models.AppConfig
	err := conn.First(&cfg, models.AppConfigID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: load config: %w", err)
	}
	cfg = models.AppConfig{ID: models.AppConfigID, EnableAuth: true, AllowedDomains: `["example.com"]`}
	if errCreate := conn.Create(&cfg).Error; errCreate != nil {
		return fmt.Errorf("db: seed config: %w", errCreate)
	}
	return nil
}
