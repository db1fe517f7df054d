package models

import "time"

// Complaint origins.
const (
	ComplaintFromPatient = "patient"
	ComplaintFromDoctor  = "doctor"
)

// Complaint is an append-only complaint filed against a booking.
type Complaint struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Type        string `gorm:"size:20;default:patient"`
	Description string `gorm:"type:text;not null"`
	BookingID   uint   `gorm:"not null;index"`
	UserID      *uint  `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Booking Booking `gorm:"foreignKey:BookingID"`
	User    *User   `gorm:"foreignKey:UserID"`
}
