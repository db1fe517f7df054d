package models

import "time"

// Attachment sides of a conversation message.
const (
	SideDoctor  = "doctor"
	SidePatient = "patient"
)

// ConversationMessage is one message of a booking's chat opinion thread.
// Rows are immutable after creation apart from attachment association.
type ConversationMessage struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	BookingID       uint   `gorm:"not null;index:idx_booking_author"`
	PatientID       *uint  `gorm:"index"`
	DoctorID        *uint  `gorm:"index"`
	IsDoctorMessage bool   `gorm:"default:false;index:idx_booking_author"`
	Message         string `gorm:"type:text"`
	NotificationID  *uint
	CreatedAt       time.Time `gorm:"index"`

	Booking      Booking             `gorm:"foreignKey:BookingID"`
	Notification *Notification       `gorm:"foreignKey:NotificationID"`
	Attachments  []MessageAttachment `gorm:"foreignKey:MessageID"`
}

// MessageAttachment links a stored document to a message on one side.
type MessageAttachment struct {
	MessageID  uint   `gorm:"primaryKey"`
	DocumentID uint   `gorm:"primaryKey"`
	Side       string `gorm:"size:8;not null;index"`

	Document Document `gorm:"foreignKey:DocumentID"`
}

// DoctorAttachments returns the documents attached on the doctor side.
func (m *ConversationMessage) DoctorAttachments() []Document {
	return m.attachmentsOn(SideDoctor)
}

// PatientAttachments returns the documents attached on the patient side.
func (m *ConversationMessage) PatientAttachments() []Document {
	return m.attachmentsOn(SidePatient)
}

func (m *ConversationMessage) attachmentsOn(side string) []Document {
	docs := []Document{}
	for _, a := range m.Attachments {
		if a.Side == side {
			docs = append(docs, a.Document)
		}
	}
	return docs
}
