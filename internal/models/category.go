package models

// Category groups memos by subject.
type Category struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`               // Primary key.
	Name string `gorm:"type:varchar(120);not null;uniqueIndex"` // Category name.
}

// Type classifies memos by kind.
type Type struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`               // Primary key.
	Name string `gorm:"type:varchar(120);not null;uniqueIndex"` // Type name.
}
