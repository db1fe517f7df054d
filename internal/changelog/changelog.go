// Package changelog records create and update events for audited entities.
package changelog

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Entry is one audited change.
type Entry struct {
	Entity   string
	EntityID uint
	Action   string
	ActorID  *uint
	Changes  map[string]any
}

// Recorder persists change entries. Record takes the database handle so
// callers can write the entry inside their own transaction.
type Recorder interface {
	Record(db *gorm.DB, e Entry) error
}

// DB writes entries to the change_logs table.
type DB struct{}

// Record inserts e using db.
func (DB) Record(db *gorm.DB, e Entry) error {
	if e.Entity == "" || e.Action == "" {
		return fmt.Errorf("changelog: entity and action are required")
	}
	var changes datatypes.JSON
	if len(e.Changes) > 0 {
		raw, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("changelog: encode changes: %w", err)
		}
		changes = datatypes.JSON(raw)
	}
	row := models.ChangeLog{
		Entity:   e.Entity,
		EntityID: e.EntityID,
		Action:   e.Action,
		ActorID:  e.ActorID,
		Changes:  changes,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("changelog: record %s %d: %w", e.Entity, e.EntityID, err)
	}
	return nil
}

// Nop discards entries.
type Nop struct{}

// Record does nothing.
func (Nop) Record(*gorm.DB, Entry) error { return nil }

// History returns the entries for one entity, oldest first.
func History(db *gorm.DB, entity string, id uint) ([]models.ChangeLog, error) {
	var rows []models.ChangeLog
	if err := db.Where("entity = ? AND entity_id = ?", entity, id).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("changelog: history %s %d: %w", entity, id, err)
	}
	return rows, nil
}
