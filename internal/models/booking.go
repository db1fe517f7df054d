package models

import "time"

// Booking statuses. The booking subsystem owns the full set; this service
// writes only in-progress and completed.
const (
	StatusNew         = "new"
	StatusInProgress  = "in-progress"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
	StatusNoShow      = "no-show"
)

// ServiceChatOpinion is the service type slug of chat opinion bookings.
const ServiceChatOpinion = "chat-opinion"

// Booking is the purchased consultation a conversation attaches to.
type Booking struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ServiceType  string `gorm:"size:64;index;default:chat-opinion"`
	Status       string `gorm:"size:16;default:new;index"`
	DoctorID     *uint  `gorm:"index"`
	PatientID    *uint  `gorm:"index"`
	UserID       *uint  `gorm:"index"`
	IsGuest      bool   `gorm:"default:false"`
	CanShareData bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Doctor      *Doctor    `gorm:"foreignKey:DoctorID"`
	Patient     *Patient   `gorm:"foreignKey:PatientID"`
	User        *User      `gorm:"foreignKey:UserID"`
	Attachments []Document `gorm:"many2many:booking_attachments;"`
}

// IsClosed reports whether the booking no longer accepts replies.
func (b *Booking) IsClosed() bool {
	return IsClosedStatus(b.Status)
}

// IsClosedStatus reports whether status is a terminal status.
func IsClosedStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Basket is the pre-booking staging row intake answers are captured
// against before checkout.
type Basket struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	UserID    *uint `gorm:"index"`
	DoctorID  *uint `gorm:"index"`
	PatientID *uint
	Status    string `gorm:"size:16;default:new"`
	CreatedAt time.Time
}
