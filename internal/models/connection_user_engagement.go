package models

import "time"

// Rating values accepted by the engagement tracker.
const (
	// RatingUp is a thumbs-up rating.
	RatingUp = "up"
	// RatingDown is a thumbs-down rating.
	RatingDown = "down"
)

// ConnectionUserEngagement tracks one user's interaction with one connection:
// an optional up/down rating plus usage counting. Rows are created lazily on
// the first rating or usage call and cascade away with either parent.
type ConnectionUserEngagement struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID       uint64      `gorm:"not null;index;uniqueIndex:uniq_user_connection,priority:1"` // Owning user.
	User         *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`              // Associated user record.
	ConnectionID uint64      `gorm:"not null;index;uniqueIndex:uniq_user_connection,priority:2"` // Owning connection.
	Connection   *Connection `gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`        // Associated connection record.

	Rating *string `gorm:"type:varchar(8)"` // "up", "down", or NULL when unrated.

	UsageCount  int64      `gorm:"not null;default:0;index"` // Times this user used the connection.
	FirstUsedAt *time.Time ``                                // Set on first usage.
	LastUsedAt  *time.Time `gorm:"index"`                    // Updated on every usage.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName keeps the historical table name.
func (ConnectionUserEngagement) TableName() string { return "connection_user_engagement" }
