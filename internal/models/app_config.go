package models

import "time"

// AppConfigID is the primary key of the one-row configuration record.
const AppConfigID = 1

// AppConfig is the single-row runtime configuration: the tenant-wide
// encryption key (hex-encoded, 32 raw bytes) and the auth-enforcement flag.
// The key is the only secret that determines decryptability of connection
// ciphertext; changing it without re-importing makes old data unreadable.
type AppConfig struct {
	ID uint64 `gorm:"primaryKey"` // Always AppConfigID.

	EnableAuth     bool   `gorm:"not null;default:true"` // Whether authentication is enforced.
	EncryptionKey  string `gorm:"type:varchar(64)"`      // Hex-encoded AES-256 key; never logged.
	AllowedDomains string `gorm:"type:text"`             // JSON array of sign-up email domains.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName keeps the historical table name.
func (AppConfig) TableName() string { return "config" }
