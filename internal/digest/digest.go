// Package digest posts a scheduled summary of the chat opinion bookings
// waiting for a doctor's reply.
package digest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/chatopinion/internal/alert"
	"github.com/zulandar/chatopinion/internal/bucket"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// DoctorCount is the number of bookings awaiting one doctor's reply.
type DoctorCount struct {
	DoctorID uint
	Name     string
	Count    int
}

// Report lists doctors with bookings in the reply bucket, busiest first.
type Report struct {
	At      time.Time
	Total   int
	Doctors []DoctorCount
}

// Build computes the reply-needed report. It returns nil when no booking
// is waiting for a reply.
func Build(db *gorm.DB, now time.Time) (*Report, error) {
	var rows []models.Booking
	if err := db.Select("id", "doctor_id", "status").
		Where("service_type = ? AND status = ? AND doctor_id IS NOT NULL",
			models.ServiceChatOpinion, models.StatusInProgress).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("digest: load bookings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(rows))
	for i, b := range rows {
		ids[i] = b.ID
	}
	sums, err := bucket.Summaries(db, ids)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}

	perDoctor := make(map[uint]int)
	for _, b := range rows {
		if bucket.Classify(b.Status, sums[b.ID]) == bucket.Reply {
			perDoctor[*b.DoctorID]++
		}
	}
	if len(perDoctor) == 0 {
		return nil, nil
	}

	doctorIDs := make([]uint, 0, len(perDoctor))
	for id := range perDoctor {
		doctorIDs = append(doctorIDs, id)
	}
	var doctors []models.Doctor
	if err := db.Preload("User").Where("id IN ?", doctorIDs).Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("digest: load doctors: %w", err)
	}
	names := make(map[uint]string, len(doctors))
	for i := range doctors {
		names[doctors[i].ID] = doctors[i].User.DisplayName()
	}

	report := &Report{At: now}
	for id, n := range perDoctor {
		name := names[id]
		if name == "" {
			name = fmt.Sprintf("doctor #%d", id)
		}
		report.Doctors = append(report.Doctors, DoctorCount{DoctorID: id, Name: name, Count: n})
		report.Total += n
	}
	sort.Slice(report.Doctors, func(i, j int) bool {
		a, b := report.Doctors[i], report.Doctors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.DoctorID < b.DoctorID
	})
	return report, nil
}

// Format renders a report as a staff alert.
func Format(r *Report) alert.Alert {
	var b strings.Builder
	for _, d := range r.Doctors {
		fmt.Fprintf(&b, "• %s: %d\n", d.Name, d.Count)
	}
	noun := "bookings"
	if r.Total == 1 {
		noun = "booking"
	}
	return alert.Alert{
		Title:    fmt.Sprintf("Chat opinions awaiting reply: %d %s", r.Total, noun),
		Body:     strings.TrimRight(b.String(), "\n"),
		Severity: alert.SeverityInfo,
		Fields: []alert.Field{
			{Name: "Doctors", Value: fmt.Sprintf("%d", len(r.Doctors)), Short: true},
			{Name: "As of", Value: r.At.Format("Jan 02 15:04 MST"), Short: true},
		},
	}
}

// Scheduler fires the digest on a cron schedule.
type Scheduler struct {
	db     *gorm.DB
	alerts alert.Sender
	sched  cron.Schedule
	now    func() time.Time
}

// NewScheduler parses expr and returns a Scheduler posting to alerts.
func NewScheduler(db *gorm.DB, alerts alert.Sender, expr string) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{db: db, alerts: alerts, sched: sched, now: time.Now}, nil
}

// Run fires the digest at each scheduled time until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(untilNext(s.sched, s.now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.Fire(ctx); err != nil {
				log.Printf("digest: %v", err)
			}
			timer.Reset(untilNext(s.sched, s.now()))
		}
	}
}

// Fire builds and sends one digest. Nothing is sent when no booking is
// waiting for a reply.
func (s *Scheduler) Fire(ctx context.Context) error {
	report, err := Build(s.db.WithContext(ctx), s.now())
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	if err := s.alerts.Send(ctx, Format(report)); err != nil {
		return fmt.Errorf("digest: send: %w", err)
	}
	return nil
}
