package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/chatopinion/internal/document"
	"github.com/zulandar/chatopinion/internal/models"
)

// MessageView is the client representation of a message.
type MessageView struct {
	ID                 uint            `json:"id"`
	PatientCanReply    bool            `json:"patient_can_replay"`
	RepliesLeft        int             `json:"replies_left"`
	Created            time.Time       `json:"created"`
	IsDoctorMessage    bool            `json:"is_doctor_message"`
	Message            string          `json:"message"`
	Patient            *uint           `json:"patient"`
	Doctor             *uint           `json:"doctor"`
	Booking            uint            `json:"booking"`
	DoctorAttachments  []document.Link `json:"doctor_attachments"`
	PatientAttachments []document.Link `json:"patient_attachments"`
}

// Views renders messages for clients. Reply budgets are computed from one
// ordered scan of each booking's history rather than one count per message.
func (s *Service) Views(ctx context.Context, msgs []models.ConversationMessage) ([]MessageView, error) {
	type cohortKey struct {
		booking uint
		doctor  bool
	}
	// position[id] is the 1-based rank of a message within its cohort.
	position := make(map[uint]int64)
	patientTotals := make(map[uint]int64)
	seen := make(map[uint]bool)
	for _, m := range msgs {
		if seen[m.BookingID] {
			continue
		}
		seen[m.BookingID] = true

		var history []models.ConversationMessage
		if err := s.db.WithContext(ctx).Select("id, is_doctor_message").
			Where("booking_id = ?", m.BookingID).
			Order("id ASC").
			Find(&history).Error; err != nil {
			return nil, fmt.Errorf("conversation: load history of booking %d: %w", m.BookingID, err)
		}
		counts := make(map[cohortKey]int64)
		for _, h := range history {
			k := cohortKey{m.BookingID, h.IsDoctorMessage}
			counts[k]++
			position[h.ID] = counts[k]
		}
		patientTotals[m.BookingID] = counts[cohortKey{m.BookingID, false}]
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			ID:                 m.ID,
			PatientCanReply:    s.policy.CanPatientReply(patientTotals[m.BookingID]),
			RepliesLeft:        s.policy.RepliesRemaining(m.IsDoctorMessage, position[m.ID]),
			Created:            m.CreatedAt,
			IsDoctorMessage:    m.IsDoctorMessage,
			Message:            m.Message,
			Patient:            m.PatientID,
			Doctor:             m.DoctorID,
			Booking:            m.BookingID,
			DoctorAttachments:  document.Links(s.docs, m.DoctorAttachments()),
			PatientAttachments: document.Links(s.docs, m.PatientAttachments()),
		})
	}
	return out, nil
}
