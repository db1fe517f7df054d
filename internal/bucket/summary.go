package bucket

import (
	"fmt"

	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// summaryChunk keeps IN lists below SQLite's bound-variable limit.
const summaryChunk = 500

// Summaries returns the conversation summary of each booking in ids.
// Bookings with no messages get a zero Summary with BookingID set.
func Summaries(db *gorm.DB, ids []uint) (map[uint]Summary, error) {
	out := make(map[uint]Summary, len(ids))
	for _, id := range ids {
		out[id] = Summary{BookingID: id}
	}

	for start := 0; start < len(ids); start += summaryChunk {
		end := min(start+summaryChunk, len(ids))
		if err := summarize(db, ids[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func summarize(db *gorm.DB, ids []uint, out map[uint]Summary) error {
	type row struct {
		BookingID     uint
		MessageCount  int64
		LastMessageID uint
	}
	var rows []row
	if err := db.Model(&models.ConversationMessage{}).
		Select("booking_id, COUNT(*) AS message_count, MAX(id) AS last_message_id").
		Where("booking_id IN ?", ids).
		Group("booking_id").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("bucket: summarize conversations: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	lastIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		lastIDs = append(lastIDs, r.LastMessageID)
	}
	var last []models.ConversationMessage
	if err := db.Select("id, booking_id, is_doctor_message").
		Where("id IN ?", lastIDs).
		Find(&last).Error; err != nil {
		return fmt.Errorf("bucket: load last messages: %w", err)
	}
	doctorLast := make(map[uint]bool, len(last))
	for _, m := range last {
		doctorLast[m.ID] = m.IsDoctorMessage
	}

	for _, r := range rows {
		out[r.BookingID] = Summary{
			BookingID:     r.BookingID,
			MessageCount:  r.MessageCount,
			LastMessageID: r.LastMessageID,
			LastIsDoctor:  doctorLast[r.LastMessageID],
		}
	}
	return nil
}
