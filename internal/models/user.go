package models

import "time"

// User is an account in the catalog.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email        string `gorm:"type:varchar(120);not null;uniqueIndex"` // Login email.
	PasswordHash string `gorm:"type:varchar(120);not null"`             // bcrypt hash.
	Username     string `gorm:"type:varchar(120)"`                      // Display name.

	IsSuperuser bool `gorm:"not null;default:false"` // Grants import and config operations.

	Preferences string `gorm:"type:text;default:'{}'"` // JSON-encoded UI preferences.
	Settings    string `gorm:"type:text;default:'{}'"` // JSON-encoded user settings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
