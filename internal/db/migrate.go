package db

import (
	"fmt"

	"github.com/zulandar/chatopinion/internal/config"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Doctor{},
		&models.Patient{},
		&models.Collection{},
		&models.Document{},
		&models.Booking{},
		&models.Basket{},
		&models.Notification{},
		&models.ConversationMessage{},
		&models.MessageAttachment{},
		&models.Complaint{},
		&models.ChatOpinionQuestion{},
		&models.ChatOpinionAnswer{},
		&models.ChangeLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedQuestions upserts intake questions from configuration, keeping their
// configured order.
func SeedQuestions(db *gorm.DB, questions []config.QuestionConfig) error {
	for i, qc := range questions {
		required := true
		if qc.Required != nil {
			required = *qc.Required
		}
		q := models.ChatOpinionQuestion{
			Code:      qc.Code,
			Label:     qc.Label,
			HelpText:  qc.HelpText,
			FieldType: qc.FieldType,
			Required:  required,
			SortOrder: i,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "help_text", "field_type", "required", "sort_order"}),
		}).Create(&q)
		if result.Error != nil {
			return fmt.Errorf("db: seed question %q: %w", qc.Code, result.Error)
		}
	}
	return nil
}
