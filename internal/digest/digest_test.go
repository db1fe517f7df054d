package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/chatopinion/internal/alert"
	"github.com/zulandar/chatopinion/internal/db"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDigestTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := gormDB.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormDB
}

func mustCreate(t *testing.T, gormDB *gorm.DB, v any) {
	t.Helper()
	if err := gormDB.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// seedDoctor creates a doctor user and profile.
func seedDoctor(t *testing.T, gormDB *gorm.DB, slug, name string) *models.Doctor {
	t.Helper()
	u := &models.User{Slug: slug, FullName: name, IsDoctor: true}
	mustCreate(t, gormDB, u)
	d := &models.Doctor{UserID: u.ID}
	mustCreate(t, gormDB, d)
	return d
}

func seedBooking(t *testing.T, gormDB *gorm.DB, id uint, status string, doctor *models.Doctor, authors ...bool) {
	t.Helper()
	mustCreate(t, gormDB, &models.Booking{ID: id, Status: status, DoctorID: &doctor.ID})
	for _, isDoctor := range authors {
		mustCreate(t, gormDB, &models.ConversationMessage{BookingID: id, IsDoctorMessage: isDoctor, Message: "m"})
	}
}

var now = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func TestBuild_CountsReplyBucketPerDoctor(t *testing.T) {
	gormDB := openDigestTestDB(t)
	house := seedDoctor(t, gormDB, "house", "Gregory House")
	wilson := seedDoctor(t, gormDB, "wilson", "James Wilson")

	seedBooking(t, gormDB, 1, models.StatusInProgress, house)              // idle: reply
	seedBooking(t, gormDB, 2, models.StatusInProgress, house, true, false) // patient last: reply
	seedBooking(t, gormDB, 3, models.StatusInProgress, house, false, true) // doctor last: in progress
	seedBooking(t, gormDB, 4, models.StatusInProgress, wilson, false)      // reply
	seedBooking(t, gormDB, 5, models.StatusNew, wilson)
	seedBooking(t, gormDB, 6, models.StatusCompleted, wilson, false)

	report, err := Build(gormDB, now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}
	if report.Total != 3 {
		t.Errorf("Total = %d, want 3", report.Total)
	}
	if len(report.Doctors) != 2 {
		t.Fatalf("Doctors = %+v, want 2 entries", report.Doctors)
	}
	if report.Doctors[0].Name != "Gregory House" || report.Doctors[0].Count != 2 {
		t.Errorf("Doctors[0] = %+v, want House with 2", report.Doctors[0])
	}
	if report.Doctors[1].Name != "James Wilson" || report.Doctors[1].Count != 1 {
		t.Errorf("Doctors[1] = %+v, want Wilson with 1", report.Doctors[1])
	}
}

func TestBuild_SuppressedWhenNothingWaits(t *testing.T) {
	gormDB := openDigestTestDB(t)
	house := seedDoctor(t, gormDB, "house", "Gregory House")

	report, err := Build(gormDB, now)
	if err != nil || report != nil {
		t.Fatalf("empty db: report = %+v, err = %v", report, err)
	}

	seedBooking(t, gormDB, 1, models.StatusInProgress, house, false, true)
	seedBooking(t, gormDB, 2, models.StatusNew, house)
	report, err = Build(gormDB, now)
	if err != nil || report != nil {
		t.Fatalf("nothing awaiting reply: report = %+v, err = %v", report, err)
	}
}

func TestFormat(t *testing.T) {
	a := Format(&Report{At: now, Total: 1, Doctors: []DoctorCount{{DoctorID: 1, Name: "Gregory House", Count: 1}}})
	if a.Title != "Chat opinions awaiting reply: 1 booking" {
		t.Errorf("Title = %q", a.Title)
	}
	if !strings.Contains(a.Body, "Gregory House: 1") {
		t.Errorf("Body = %q", a.Body)
	}
	if a.Severity != alert.SeverityInfo {
		t.Errorf("Severity = %q", a.Severity)
	}
}

func TestScheduler_Fire(t *testing.T) {
	gormDB := openDigestTestDB(t)
	house := seedDoctor(t, gormDB, "house", "Gregory House")
	mock := &alert.Mock{}
	s, err := NewScheduler(gormDB, mock, "0 8 * * 1-5")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Fire(ctx); err != nil {
		t.Fatalf("Fire (empty): %v", err)
	}
	if len(mock.Sent()) != 0 {
		t.Fatal("digest should be suppressed when nothing waits")
	}

	seedBooking(t, gormDB, 1, models.StatusInProgress, house)
	if err := s.Fire(ctx); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if len(mock.Sent()) != 1 {
		t.Fatalf("sent = %d, want 1", len(mock.Sent()))
	}

	mock.Err = errors.New("slack down")
	if err := s.Fire(ctx); err == nil {
		t.Error("expected send error")
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	gormDB := openDigestTestDB(t)
	s, err := NewScheduler(gormDB, alert.Nop{}, "0 8 * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseSchedule(t *testing.T) {
	if _, err := ParseSchedule("not a cron expr"); err == nil {
		t.Error("expected error for invalid expression")
	}
	if _, err := ParseSchedule("0 8 * * * *"); err == nil {
		t.Error("six fields should be rejected")
	}

	sched, err := ParseSchedule("CRON_TZ=UTC 0 9 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	d := untilNext(sched, now)
	if d != time.Hour {
		t.Errorf("untilNext = %v, want 1h", d)
	}
}

func TestUntilNext_EveryMinute(t *testing.T) {
	sched, err := ParseSchedule("* * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	d := untilNext(sched, now.Add(30*time.Second))
	if d <= 0 || d > time.Minute {
		t.Errorf("untilNext = %v, want within a minute", d)
	}
}
