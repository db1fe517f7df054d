package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChangeLog is the audit trail written on every mutation.
type ChangeLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	Entity    string         `gorm:"size:64;not null;index:idx_entity"`
	EntityID  uint           `gorm:"not null;index:idx_entity"`
	Action    string         `gorm:"size:16;not null"`
	ActorID   *uint          `gorm:"index"`
	Changes   datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time
}
