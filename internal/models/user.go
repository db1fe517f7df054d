package models

import "time"

// User is an authenticated account. Identity and sessions are owned by the
// auth gateway; this service only reads the row.
type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Slug      string `gorm:"size:64;uniqueIndex;not null"`
	Email     string `gorm:"size:254"`
	FullName  string `gorm:"size:128"`
	IsDoctor  bool   `gorm:"default:false"`
	CreatedAt time.Time

	Doctor *Doctor `gorm:"foreignKey:UserID"`
}

// DoctorProfileID returns the doctor profile ID of a doctor user. It is 0
// for patients, anonymous callers (nil) and doctors without a loaded
// profile.
func (u *User) DoctorProfileID() uint {
	if u == nil || !u.IsDoctor || u.Doctor == nil {
		return 0
	}
	return u.Doctor.ID
}

// IsDoctorActor reports whether u acts with doctor privileges.
func (u *User) IsDoctorActor() bool {
	return u.DoctorProfileID() != 0
}

// Owns reports whether u is the owner of booking b.
func (u *User) Owns(b *Booking) bool {
	return u != nil && b != nil && b.UserID != nil && *b.UserID == u.ID
}

// DisplayName returns the full name, falling back to the slug.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Slug
}

// Doctor is the practitioner profile attached to a doctor User.
type Doctor struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UserID      uint   `gorm:"uniqueIndex;not null"`
	Speciality  string `gorm:"size:64"`
	OpinionFees int64  `gorm:"default:0"`

	User User `gorm:"foreignKey:UserID"`
}

// Patient is a patient profile. ParentID links the profile to the User who
// manages it; guest bookings have no parent.
type Patient struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ParentID       *uint  `gorm:"index"`
	FullName       string `gorm:"size:128"`
	Gender         string `gorm:"size:16"`
	MedicalDetails string `gorm:"type:text"`
	IsDeleted      bool   `gorm:"default:false"`

	Parent *User `gorm:"foreignKey:ParentID"`
}
