// Package intake manages the chat opinion intake questionnaire: the
// configurable questions and the answers a patient gives for a basket or
// booking.
package intake

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// Field types.
const (
	FieldSingleLine = "singleline"
	FieldMultiLine  = "multiline"
	FieldNumber     = "number"
	FieldDate       = "date"
	FieldCheckbox   = "checkbox"
)

var fieldTypes = map[string]bool{
	FieldSingleLine: true,
	FieldMultiLine:  true,
	FieldNumber:     true,
	FieldDate:       true,
	FieldCheckbox:   true,
}

// Validation messages.
const (
	MsgRequired    = "This field is required."
	MsgDuplicate   = "Chat Opinion Question with this Field Code already exists."
	MsgBadType     = "Select a valid choice."
	MsgNotANumber  = "Enter a number."
	MsgOneTarget   = "Provide exactly one of booking or basket."
	entityQuestion = "question"
)

// QuestionInput describes a new question.
type QuestionInput struct {
	Code      string
	Label     string
	HelpText  string
	FieldType string
	Required  bool
}

// CreateQuestion adds a question at the end of the questionnaire.
func CreateQuestion(db *gorm.DB, in QuestionInput) (*models.ChatOpinionQuestion, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Label = strings.TrimSpace(in.Label)
	if in.FieldType == "" {
		in.FieldType = FieldSingleLine
	}

	verr := &apperr.ValidationError{Fields: map[string][]string{}}
	if in.Code == "" {
		verr.Fields["code"] = []string{MsgRequired}
	}
	if in.Label == "" {
		verr.Fields["label"] = []string{MsgRequired}
	}
	if !fieldTypes[in.FieldType] {
		verr.Fields["field_type"] = []string{MsgBadType}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var q models.ChatOpinionQuestion
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.ChatOpinionQuestion{}).Where("code = ?", in.Code).Count(&existing).Error; err != nil {
			return fmt.Errorf("intake: check code %q: %w", in.Code, err)
		}
		if existing > 0 {
			return apperr.Validation("code", MsgDuplicate)
		}
		var maxOrder int64
		if err := tx.Model(&models.ChatOpinionQuestion{}).
			Select("COALESCE(MAX(sort_order), -1)").
			Row().Scan(&maxOrder); err != nil {
			return fmt.Errorf("intake: next sort order: %w", err)
		}
		q = models.ChatOpinionQuestion{
			Code:      in.Code,
			Label:     in.Label,
			HelpText:  in.HelpText,
			FieldType: in.FieldType,
			Required:  in.Required,
			SortOrder: int(maxOrder) + 1,
		}
		if err := tx.Create(&q).Error; err != nil {
			return fmt.Errorf("intake: create question %q: %w", in.Code, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions returns the questionnaire in display order.
func ListQuestions(db *gorm.DB) ([]models.ChatOpinionQuestion, error) {
	var qs []models.ChatOpinionQuestion
	if err := db.Order("sort_order ASC, id ASC").Find(&qs).Error; err != nil {
		return nil, fmt.Errorf("intake: list questions: %w", err)
	}
	return qs, nil
}

// DeleteQuestion removes a question by code. Existing answers keep the
// label they were given under and lose the question link.
func DeleteQuestion(db *gorm.DB, code string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var q models.ChatOpinionQuestion
		if err := tx.Where("code = ?", code).First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(entityQuestion, code)
			}
			return fmt.Errorf("intake: load question %q: %w", code, err)
		}
		if err := tx.Model(&models.ChatOpinionAnswer{}).
			Where("question_id = ?", q.ID).
			Updates(map[string]any{"question_label": q.Label, "question_id": nil}).Error; err != nil {
			return fmt.Errorf("intake: detach answers of %q: %w", code, err)
		}
		if err := tx.Delete(&q).Error; err != nil {
			return fmt.Errorf("intake: delete question %q: %w", code, err)
		}
		return nil
	})
}

// Target selects where answers are stored: a basket before checkout or a
// booking after it. Exactly one must be set.
type Target struct {
	BookingID *uint
	BasketID  *uint
}

func (t Target) column() (string, uint, bool) {
	switch {
	case t.BookingID != nil && t.BasketID == nil:
		return "booking_id", *t.BookingID, true
	case t.BasketID != nil && t.BookingID == nil:
		return "basket_id", *t.BasketID, true
	}
	return "", 0, false
}

// SaveAnswers stores answers keyed by question code, replacing earlier
// answers to the same questions on the same target. Unknown codes are an
// error; required questions must be answered.
func SaveAnswers(db *gorm.DB, target Target, answers map[string]string) ([]models.ChatOpinionAnswer, error) {
	col, id, ok := target.column()
	if !ok {
		return nil, apperr.Validation("target", MsgOneTarget)
	}

	questions, err := ListQuestions(db)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]models.ChatOpinionQuestion, len(questions))
	for _, q := range questions {
		byCode[q.Code] = q
	}

	codes := make([]string, 0, len(answers))
	for code := range answers {
		if _, ok := byCode[code]; !ok {
			return nil, apperr.NotFound(entityQuestion, code)
		}
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return byCode[codes[i]].SortOrder < byCode[codes[j]].SortOrder })

	verr := &apperr.ValidationError{Fields: map[string][]string{}}
	for _, q := range questions {
		value := strings.TrimSpace(answers[q.Code])
		if q.Required && value == "" {
			verr.Fields[q.Code] = []string{MsgRequired}
			continue
		}
		if value != "" && q.FieldType == FieldNumber {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				verr.Fields[q.Code] = []string{MsgNotANumber}
			}
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var saved []models.ChatOpinionAnswer
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, code := range codes {
			q := byCode[code]
			if err := tx.Where(col+" = ? AND question_id = ?", id, q.ID).
				Delete(&models.ChatOpinionAnswer{}).Error; err != nil {
				return fmt.Errorf("intake: replace answer %q: %w", code, err)
			}
			qid := q.ID
			a := models.ChatOpinionAnswer{
				QuestionID:    &qid,
				QuestionLabel: q.Label,
				BookingID:     target.BookingID,
				BasketID:      target.BasketID,
				Answer:        answers[code],
			}
			if err := tx.Omit("Question").Create(&a).Error; err != nil {
				return fmt.Errorf("intake: save answer %q: %w", code, err)
			}
			saved = append(saved, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// AnswerView is an answer as shown on a booking.
type AnswerView struct {
	QuestionLabel string `json:"question_label"`
	Answer        string `json:"answer"`
}

// AnswersFor returns the answers recorded on a booking in questionnaire
// order. Answers to deleted questions come last under their frozen label.
func AnswersFor(db *gorm.DB, bookingID uint) ([]AnswerView, error) {
	byBooking, err := AnswersForBookings(db, []uint{bookingID})
	if err != nil {
		return nil, err
	}
	if out := byBooking[bookingID]; out != nil {
		return out, nil
	}
	return []AnswerView{}, nil
}

// AnswersForBookings loads the answers of several bookings in one query,
// keyed by booking id. Bookings without answers are absent from the map.
func AnswersForBookings(db *gorm.DB, bookingIDs []uint) (map[uint][]AnswerView, error) {
	out := make(map[uint][]AnswerView, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	var rows []models.ChatOpinionAnswer
	if err := db.Preload("Question").
		Where("booking_id IN ?", bookingIDs).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("intake: answers for bookings %v: %w", bookingIDs, err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		qi, qj := rows[i].Question, rows[j].Question
		switch {
		case qi == nil:
			return false
		case qj == nil:
			return true
		}
		return qi.SortOrder < qj.SortOrder
	})

	for i := range rows {
		id := *rows[i].BookingID
		out[id] = append(out[id], AnswerView{QuestionLabel: rows[i].Label(), Answer: rows[i].Answer})
	}
	return out, nil
}

// MoveBasketAnswers reassigns a basket's answers to the booking created
// from it and returns how many moved.
func MoveBasketAnswers(db *gorm.DB, basketID, bookingID uint) (int64, error) {
	result := db.Model(&models.ChatOpinionAnswer{}).
		Where("basket_id = ?", basketID).
		Updates(map[string]any{"booking_id": bookingID, "basket_id": nil})
	if result.Error != nil {
		return 0, fmt.Errorf("intake: move basket %d answers to booking %d: %w", basketID, bookingID, result.Error)
	}
	return result.RowsAffected, nil
}
