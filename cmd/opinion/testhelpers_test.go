package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/chatopinion/internal/config"
	"github.com/zulandar/chatopinion/internal/db"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// writeTestConfig writes a sqlite config under a temp dir and returns its
// path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
documents:
  root: %s
chat:
  reply_limit: 3
questions:
  - code: symptoms
    label: Describe your symptoms
    field_type: multiline
  - code: age
    label: Age
    field_type: number
    required: false
`, filepath.Join(dir, "opinion.db"), filepath.Join(dir, "media"))
	path := filepath.Join(dir, "opinion.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// mustRun is runCmd failing the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("opinion %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

type fixture struct {
	cfgPath string
	db      *gorm.DB
	booking models.Booking
}

// initFixture initializes a database through the CLI and seeds a patient
// (ada), her doctor (house), an unrelated doctor (wilson) and one new
// booking.
func initFixture(t *testing.T) *fixture {
	t.Helper()
	cfgPath := writeTestConfig(t)
	mustRun(t, "db", "init", "--config", cfgPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ada := models.User{Slug: "ada", FullName: "Ada Lovelace"}
	house := models.User{Slug: "house", FullName: "Gregory House", IsDoctor: true}
	wilson := models.User{Slug: "wilson", FullName: "James Wilson", IsDoctor: true}
	for _, u := range []*models.User{&ada, &house, &wilson} {
		if err := gormDB.Create(u).Error; err != nil {
			t.Fatalf("create user %s: %v", u.Slug, err)
		}
	}
	houseDoc := models.Doctor{UserID: house.ID, Speciality: "Diagnostics", OpinionFees: 500}
	wilsonDoc := models.Doctor{UserID: wilson.ID, Speciality: "Oncology"}
	for _, d := range []*models.Doctor{&houseDoc, &wilsonDoc} {
		if err := gormDB.Omit("User").Create(d).Error; err != nil {
			t.Fatalf("create doctor: %v", err)
		}
	}
	patient := models.Patient{ParentID: &ada.ID, FullName: "Ada Lovelace", Gender: "female"}
	if err := gormDB.Omit("Parent").Create(&patient).Error; err != nil {
		t.Fatalf("create patient: %v", err)
	}
	b := models.Booking{
		ServiceType: models.ServiceChatOpinion,
		Status:      models.StatusNew,
		DoctorID:    &houseDoc.ID,
		PatientID:   &patient.ID,
		UserID:      &ada.ID,
	}
	if err := gormDB.Omit("Doctor", "Patient", "User", "Attachments").Create(&b).Error; err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return &fixture{cfgPath: cfgPath, db: gormDB, booking: b}
}

func (f *fixture) id() string {
	return fmt.Sprintf("%d", f.booking.ID)
}
