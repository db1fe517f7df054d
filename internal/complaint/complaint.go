// Package complaint records complaints filed against chat opinion
// bookings and forwards them to staff.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/zulandar/chatopinion/internal/alert"
	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/changelog"
	"github.com/zulandar/chatopinion/internal/mail"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Validation messages.
const (
	MsgRequired       = "This field is required."
	MsgInvalidBooking = "Invalid booking id"
	MsgNotLoggedIn    = "Authentication credentials were not provided."
)

// EntityComplaint is the change-log entity name for complaints.
const EntityComplaint = "complaint"

// Service files complaints.
type Service struct {
	db          *gorm.DB
	changes     changelog.Recorder
	mail        mail.Sender
	alerts      alert.Sender
	complaintTo string
}

// Options configures a Service. ComplaintTo is the staff address; when it
// is empty no mail is sent.
type Options struct {
	Changes     changelog.Recorder
	Mail        mail.Sender
	Alerts      alert.Sender
	ComplaintTo string
}

// NewService returns a complaint Service.
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:          db,
		changes:     opts.Changes,
		mail:        opts.Mail,
		alerts:      opts.Alerts,
		complaintTo: opts.ComplaintTo,
	}
	if s.changes == nil {
		s.changes = changelog.Nop{}
	}
	if s.alerts == nil {
		s.alerts = alert.Nop{}
	}
	return s
}

// Input is a complaint as submitted. The complaint type is derived from
// the actor and cannot be supplied.
type Input struct {
	Actor       *models.User
	BookingID   uint
	Description string
}

// File validates and stores a complaint, then notifies staff. Delivery
// failures are logged and do not fail the call.
func (s *Service) File(ctx context.Context, in Input) (*models.Complaint, error) {
	if in.Actor == nil {
		return nil, apperr.Unauthenticated(MsgNotLoggedIn)
	}
	verr := &apperr.ValidationError{Fields: map[string][]string{}}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		verr.Fields["description"] = []string{MsgRequired}
	}
	if in.BookingID == 0 {
		verr.Fields["booking"] = []string{MsgRequired}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, in.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("booking", in.BookingID)
		}
		return nil, fmt.Errorf("complaint: load booking %d: %w", in.BookingID, err)
	}

	kind := models.ComplaintFromPatient
	if in.Actor.IsDoctorActor() {
		kind = models.ComplaintFromDoctor
	} else if !in.Actor.Owns(&booking) {
		return nil, apperr.Validation("booking", MsgInvalidBooking)
	}

	actorID := in.Actor.ID
	c := models.Complaint{
		Type:        kind,
		Description: description,
		BookingID:   booking.ID,
		UserID:      &actorID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return fmt.Errorf("complaint: create: %w", err)
		}
		return s.changes.Record(tx, changelog.Entry{
			Entity:   EntityComplaint,
			EntityID: c.ID,
			Action:   changelog.ActionCreate,
			ActorID:  &actorID,
			Changes: map[string]any{
				"booking":     booking.ID,
				"type":        kind,
				"description": description,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, &c, in.Actor)
	return &c, nil
}

func (s *Service) notify(ctx context.Context, c *models.Complaint, actor *models.User) {
	if s.mail != nil && s.complaintTo != "" {
		data := map[string]any{
			"booking_id":  c.BookingID,
			"type":        c.Type,
			"user":        actor.DisplayName(),
			"description": c.Description,
		}
		if err := s.mail.Send(ctx, mail.TemplateComplaint, s.complaintTo, data); err != nil {
			log.Printf("complaint: mail for complaint %d: %v", c.ID, err)
		}
	}

	a := alert.Alert{
		Title:    fmt.Sprintf("Complaint on chat opinion #%d", c.BookingID),
		Body:     c.Description,
		Severity: alert.SeverityWarning,
		Fields: []alert.Field{
			{Name: "From", Value: c.Type, Short: true},
			{Name: "User", Value: actor.DisplayName(), Short: true},
			{Name: "Complaint", Value: strconv.FormatUint(uint64(c.ID), 10), Short: true},
		},
	}
	if err := s.alerts.Send(ctx, a); err != nil {
		log.Printf("complaint: alert for complaint %d: %v", c.ID, err)
	}
}
