package models

import "time"

// Notification is a read/unread flag shown to a user.
type Notification struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RecipientID uint   `gorm:"not null;index"`
	Verb        string `gorm:"size:255"`
	IsRead      bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
}
