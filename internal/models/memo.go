package models

import "time"

// Memo is a short note, optionally classified by category and type.
type Memo struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(120);not null;index"` // Memo title.
	Description string `gorm:"type:text"`                        // Optional description.
	Content     string `gorm:"type:text;not null"`               // Memo body.

	CategoryID *uint64   `gorm:"index"`                 // Optional category.
	Category   *Category `gorm:"foreignKey:CategoryID"` // Associated category.
	TypeID     *uint64   `gorm:"index"`                 // Optional type.
	Type       *Type     `gorm:"foreignKey:TypeID"`     // Associated type.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
