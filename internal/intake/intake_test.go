package intake

import (
	"errors"
	"testing"

	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openIntakeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.ChatOpinionQuestion{}, &models.ChatOpinionAnswer{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedQuestions(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, in := range []QuestionInput{
		{Code: "symptoms", Label: "Describe your symptoms", FieldType: FieldMultiLine, Required: true},
		{Code: "age", Label: "Age", FieldType: FieldNumber},
		{Code: "history", Label: "Medical history"},
	} {
		if _, err := CreateQuestion(db, in); err != nil {
			t.Fatalf("CreateQuestion(%s): %v", in.Code, err)
		}
	}
}

func uintPtr(v uint) *uint { return &v }

func TestCreateQuestion_OrderAndDefaults(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	qs, err := ListQuestions(db)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("questions = %d, want 3", len(qs))
	}
	for i, want := range []string{"symptoms", "age", "history"} {
		if qs[i].Code != want || qs[i].SortOrder != i {
			t.Errorf("qs[%d] = %s/%d, want %s/%d", i, qs[i].Code, qs[i].SortOrder, want, i)
		}
	}
	if qs[2].FieldType != FieldSingleLine {
		t.Errorf("default field type = %q", qs[2].FieldType)
	}
	if !qs[0].Required || qs[1].Required {
		t.Error("required flags not stored")
	}
}

func TestCreateQuestion_Validation(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	_, err := CreateQuestion(db, QuestionInput{Code: "symptoms", Label: "Again"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Fields["code"][0] != MsgDuplicate {
		t.Errorf("duplicate code err = %v", err)
	}

	_, err = CreateQuestion(db, QuestionInput{FieldType: "radio"})
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation", err)
	}
	for _, field := range []string{"code", "label", "field_type"} {
		if len(ve.Fields[field]) == 0 {
			t.Errorf("missing %s error in %v", field, ve.Fields)
		}
	}
}

func TestSaveAnswers_BookingAndReplace(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)
	target := Target{BookingID: uintPtr(15)}

	saved, err := SaveAnswers(db, target, map[string]string{"symptoms": "Headache", "age": "42"})
	if err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	if len(saved) != 2 || saved[0].QuestionLabel != "Describe your symptoms" {
		t.Errorf("saved = %+v", saved)
	}

	if _, err := SaveAnswers(db, target, map[string]string{"symptoms": "Migraine"}); err != nil {
		t.Fatalf("SaveAnswers (replace): %v", err)
	}

	got, err := AnswersFor(db, 15)
	if err != nil {
		t.Fatalf("AnswersFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("answers = %+v, want 2", got)
	}
	if got[0].QuestionLabel != "Describe your symptoms" || got[0].Answer != "Migraine" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].QuestionLabel != "Age" || got[1].Answer != "42" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestSaveAnswers_Errors(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	if _, err := SaveAnswers(db, Target{}, map[string]string{"symptoms": "x"}); !apperr.IsValidation(err) {
		t.Errorf("no target err = %v", err)
	}
	if _, err := SaveAnswers(db, Target{BookingID: uintPtr(1), BasketID: uintPtr(2)}, nil); !apperr.IsValidation(err) {
		t.Errorf("two targets err = %v", err)
	}
	if _, err := SaveAnswers(db, Target{BookingID: uintPtr(1)}, map[string]string{"bogus": "x", "symptoms": "x"}); !apperr.IsNotFound(err) {
		t.Errorf("unknown code err = %v", err)
	}

	_, err := SaveAnswers(db, Target{BookingID: uintPtr(1)}, map[string]string{"age": "forty"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation", err)
	}
	if ve.Fields["symptoms"][0] != MsgRequired {
		t.Errorf("symptoms error = %v", ve.Fields["symptoms"])
	}
	if ve.Fields["age"][0] != MsgNotANumber {
		t.Errorf("age error = %v", ve.Fields["age"])
	}
}

func TestDeleteQuestion_FreezesLabel(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	if _, err := SaveAnswers(db, Target{BookingID: uintPtr(15)},
		map[string]string{"symptoms": "Cough", "history": "Asthma"}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	if err := DeleteQuestion(db, "symptoms"); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if err := DeleteQuestion(db, "symptoms"); !apperr.IsNotFound(err) {
		t.Errorf("second delete err = %v, want not found", err)
	}

	got, err := AnswersFor(db, 15)
	if err != nil {
		t.Fatalf("AnswersFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("answers = %+v", got)
	}
	// Live questions first, then answers to deleted questions.
	if got[0].QuestionLabel != "Medical history" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].QuestionLabel != "Describe your symptoms" || got[1].Answer != "Cough" {
		t.Errorf("frozen answer = %+v", got[1])
	}

	var orphan models.ChatOpinionAnswer
	db.Where("answer = ?", "Cough").First(&orphan)
	if orphan.QuestionID != nil {
		t.Errorf("QuestionID = %v, want nil", *orphan.QuestionID)
	}
}

func TestMoveBasketAnswers(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	if _, err := SaveAnswers(db, Target{BasketID: uintPtr(4)},
		map[string]string{"symptoms": "Fever", "age": "7"}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	moved, err := MoveBasketAnswers(db, 4, 22)
	if err != nil {
		t.Fatalf("MoveBasketAnswers: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}
	got, _ := AnswersFor(db, 22)
	if len(got) != 2 {
		t.Errorf("booking answers = %d, want 2", len(got))
	}
	var left int64
	db.Model(&models.ChatOpinionAnswer{}).Where("basket_id = ?", 4).Count(&left)
	if left != 0 {
		t.Errorf("basket still has %d answers", left)
	}
}

func TestAnswersForBookings(t *testing.T) {
	db := openIntakeTestDB(t)
	seedQuestions(t, db)

	for id, symptom := range map[uint]string{15: "Cough", 16: "Rash"} {
		if _, err := SaveAnswers(db, Target{BookingID: uintPtr(id)},
			map[string]string{"symptoms": symptom, "age": "30"}); err != nil {
			t.Fatalf("SaveAnswers(%d): %v", id, err)
		}
	}

	var queries int
	db.Callback().Query().Before("gorm:query").Register("test:count_queries", func(*gorm.DB) { queries++ })
	got, err := AnswersForBookings(db, []uint{15, 16, 99})
	if err != nil {
		t.Fatalf("AnswersForBookings: %v", err)
	}
	// One query for the answers, one for the preloaded questions.
	if queries != 2 {
		t.Errorf("queries = %d, want 2", queries)
	}
	if len(got[15]) != 2 || got[15][0].Answer != "Cough" {
		t.Errorf("booking 15 answers = %+v", got[15])
	}
	if len(got[16]) != 2 || got[16][0].Answer != "Rash" {
		t.Errorf("booking 16 answers = %+v", got[16])
	}
	if _, ok := got[99]; ok {
		t.Error("booking without answers should be absent")
	}

	empty, err := AnswersFor(db, 99)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("AnswersFor(99) = %v, %v; want empty list", empty, err)
	}
}
