package models

import (
	"time"

	"gorm.io/datatypes"
)

// Connection stores one URL-level endpoint flattened from the imported
// document hierarchy (company -> site -> application -> server -> url).
//
// Sensitive fields (comments, comment_urls, server_ip, url_type, url, user,
// pwd, server_comment) hold ciphertext exactly as delivered by the source
// system: base64 of nonce||ciphertext||tag, AES-256-GCM with the field label
// as AAD. Classification fields stay plaintext for filtering.
type Connection struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyName     string `gorm:"type:varchar(255);not null;index"` // Company name.
	SiteName        string `gorm:"type:varchar(255);not null;index"` // Site name.
	ApplicationName string `gorm:"type:varchar(255);not null;index"` // Application name.

	ApplicationLastUpdate *time.Time // Application-level last update from the document.
	ConnectionLastUpdate  *time.Time // Connection-level last update from the document.

	Comments    *string        `gorm:"type:text"` // Encrypted application comments.
	CommentURLs datatypes.JSON ``                 // Array of encrypted comment URL strings.

	ServerIP         *string    `gorm:"type:text"` // Encrypted server IP.
	ServerLastUpdate *time.Time // Server-level last update from the document.

	URLID         string     `gorm:"type:varchar(36);not null;uniqueIndex"` // Stable UUID from the source system; merge key.
	URLLastUpdate *time.Time // URL-level last update from the document.

	URLMode       string `gorm:"type:varchar(50)"`        // "classic" or "extrapolated".
	URLService    string `gorm:"type:varchar(50);index"`  // Service type, exact-match filterable.
	URLServerType string `gorm:"type:varchar(100);index"` // Server type (Production, Test, ...).

	URLType          *string `gorm:"type:text"` // Encrypted URL type.
	URL              *string `gorm:"type:text"` // Encrypted URL string.
	User             *string `gorm:"type:text"` // Encrypted username.
	Pwd              *string `gorm:"type:text"` // Encrypted password.
	URLServerComment *string `gorm:"type:text"` // Encrypted per-URL server comment.

	// Aggregate engagement counters. Only the engagement tracker adjusts
	// these, inside the same transaction as the per-user row write.
	RatingUp   int64 `gorm:"not null;default:0"` // Count of "up" ratings.
	RatingDown int64 `gorm:"not null;default:0"` // Count of "down" ratings.
	UsageCount int64 `gorm:"not null;default:0"` // Sum of per-user usage counts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasCredentials reports whether both username and password ciphertext are present.
func (c *Connection) HasCredentials() bool {
	return c.User != nil && *c.User != "" && c.Pwd != nil && *c.Pwd != ""
}

// HasURL reports whether the URL ciphertext is present.
func (c *Connection) HasURL() bool {
	return c.URL != nil && *c.URL != ""
}
