package models

// ChatOpinionQuestion is one field of the dynamic case-detail form.
type ChatOpinionQuestion struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Code      string `gorm:"size:100;uniqueIndex;not null"`
	Label     string `gorm:"size:255;not null"`
	HelpText  string `gorm:"type:text"`
	FieldType string `gorm:"size:16;default:singleline"`
	Required  bool   `gorm:"not null"`
	SortOrder int    `gorm:"default:0"`
}

// ChatOpinionAnswer captures a question's answer against a booking or a
// basket. QuestionLabel freezes the label so the answer survives deletion
// of its question.
type ChatOpinionAnswer struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	QuestionID    *uint  `gorm:"index"`
	QuestionLabel string `gorm:"type:text"`
	BookingID     *uint  `gorm:"index"`
	BasketID      *uint  `gorm:"index"`
	Answer        string `gorm:"type:text"`

	Question *ChatOpinionQuestion `gorm:"foreignKey:QuestionID;constraint:OnDelete:SET NULL"`
}

// Label returns the live question label, falling back to the frozen one.
func (a *ChatOpinionAnswer) Label() string {
	if a.Question != nil {
		return a.Question.Label
	}
	return a.QuestionLabel
}
