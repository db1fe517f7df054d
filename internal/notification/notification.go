// Package notification stores in-app notifications for users.
package notification

import (
	"fmt"

	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// Create records an unread notification for recipient.
func Create(db *gorm.DB, recipientID uint, verb string) (*models.Notification, error) {
	if recipientID == 0 {
		return nil, fmt.Errorf("notification: recipient is required")
	}
	if verb == "" {
		return nil, fmt.Errorf("notification: verb is required")
	}
	n := models.Notification{RecipientID: recipientID, Verb: verb}
	if err := db.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("notification: create: %w", err)
	}
	return &n, nil
}

// Unread returns unread notifications for a user, oldest first.
func Unread(db *gorm.DB, recipientID uint) ([]models.Notification, error) {
	var out []models.Notification
	if err := db.Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("notification: unread %d: %w", recipientID, err)
	}
	return out, nil
}

// MarkRead marks the given notifications of recipient read and returns how
// many changed. Already-read, unknown and other users' IDs are ignored.
func MarkRead(db *gorm.DB, recipientID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.Model(&models.Notification{}).
		Where("id IN ? AND recipient_id = ? AND is_read = ?", ids, recipientID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("notification: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}
