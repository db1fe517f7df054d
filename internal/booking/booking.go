// Package booking provides the chat opinion case lifecycle: accepting and
// completing bookings, and the caller-scoped booking queries.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/bucket"
	"github.com/zulandar/chatopinion/internal/changelog"
	"github.com/zulandar/chatopinion/internal/document"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// User-facing authorization messages.
const (
	MsgBadToken         = "Something is wrong with token"
	MsgNotYoursAccept   = "You are not authorized to accept this booking"
	MsgNotYoursComplete = "You are not authorized to complete this booking"
	MsgNotAuthenticated = "Authentication credentials were not provided."
)

// EntityBooking is the change-log entity name for bookings.
const EntityBooking = "booking"

// Page sizes for List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Service runs booking transitions and queries.
type Service struct {
	db      *gorm.DB
	changes changelog.Recorder
	docs    document.URLer
	loc     *time.Location
}

// Options configures a Service. Location sets the zone of creation times
// in views and defaults to time.Local.
type Options struct {
	Changes  changelog.Recorder
	Docs     document.URLer
	Location *time.Location
}

// NewService returns a booking Service.
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{db: db, changes: opts.Changes, docs: opts.Docs, loc: opts.Location}
	if s.changes == nil {
		s.changes = changelog.Nop{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// Accept moves a booking to in-progress. Only the assigned doctor may
// accept, and only chat opinion bookings are found. There is no guard on the current status: accepting a completed
// booking reopens it.
func (s *Service) Accept(ctx context.Context, id uint, actor *models.User) (*models.Booking, error) {
	return s.transition(ctx, id, actor, models.StatusInProgress, MsgNotYoursAccept)
}

// Complete moves a booking to completed. Only the assigned doctor may
// complete.
func (s *Service) Complete(ctx context.Context, id uint, actor *models.User) (*models.Booking, error) {
	return s.transition(ctx, id, actor, models.StatusCompleted, MsgNotYoursComplete)
}

func (s *Service) transition(ctx context.Context, id uint, actor *models.User, to, denied string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("service_type = ?", models.ServiceChatOpinion).First(&b, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(EntityBooking, id)
			}
			return fmt.Errorf("booking: load %d: %w", id, err)
		}
		if !actor.IsDoctorActor() {
			return apperr.Unauthorized(MsgBadToken)
		}
		if b.DoctorID == nil || *b.DoctorID != actor.DoctorProfileID() {
			return apperr.Unauthorized(denied)
		}

		from := b.Status
		if err := tx.Model(&b).Update("status", to).Error; err != nil {
			return fmt.Errorf("booking: set %d %s: %w", id, to, err)
		}
		b.Status = to
		actorID := actor.ID
		return s.changes.Record(tx, changelog.Entry{
			Entity:   EntityBooking,
			EntityID: b.ID,
			Action:   changelog.ActionUpdate,
			ActorID:  &actorID,
			Changes:  map[string]any{"status": []string{from, to}},
		})
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Scope returns the chat opinion bookings caller may see: patients their
// own bookings, doctors the bookings assigned to them, anonymous callers
// all of them.
func (s *Service) Scope(ctx context.Context, caller *models.User) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("bookings.service_type = ?", models.ServiceChatOpinion)
	switch {
	case caller == nil:
	case caller.IsDoctorActor():
		q = q.Where("bookings.doctor_id = ?", caller.DoctorProfileID())
	default:
		q = q.Where("bookings.user_id = ?", caller.ID)
	}
	return q
}

// ListParams selects a page of bookings. Status is a bucket name (closed,
// in-progress, reply) or a raw status; empty lists everything.
type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

// Page is one page of the booking list. Counts cover the caller's whole
// scope whatever the status filter.
type Page struct {
	Count    int64  `json:"count"`
	Page     int    `json:"-"`
	PageSize int    `json:"-"`
	Results  []View `json:"results"`
	bucket.Counts
}

// HasNext reports whether a later page exists.
func (p *Page) HasNext() bool {
	return int64(p.Page*p.PageSize) < p.Count
}

// List returns a page of the caller's bookings, newest first. Page numbers
// start at 1; a page past the end is NotFound.
func (s *Service) List(ctx context.Context, caller *models.User, params ListParams) (*Page, error) {
	page, size := params.Page, params.PageSize
	if page == 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 0 {
		return nil, apperr.NotFound("page", params.Page)
	}

	type row struct {
		ID     uint
		Status string
	}
	var rows []row
	if err := s.Scope(ctx, caller).
		Select("bookings.id, bookings.status").
		Order("bookings.created_at DESC, bookings.id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("booking: list scope: %w", err)
	}

	var active []uint
	for _, r := range rows {
		if r.Status == models.StatusInProgress {
			active = append(active, r.ID)
		}
	}
	sums, err := bucket.Summaries(s.db.WithContext(ctx), active)
	if err != nil {
		return nil, err
	}

	out := &Page{Page: page, PageSize: size, Results: []View{}}
	var matched []uint
	for _, r := range rows {
		out.Counts.Add(r.Status, sums[r.ID])
		if bucket.Matches(params.Status, r.Status, sums[r.ID]) {
			matched = append(matched, r.ID)
		}
	}
	out.Count = int64(len(matched))

	start := (page - 1) * size
	if start >= len(matched) {
		if page == 1 {
			return out, nil
		}
		return nil, apperr.NotFound("page", page)
	}
	end := min(start+size, len(matched))
	ids := matched[start:end]

	bookings, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	views, err := s.Views(ctx, bookings, params.Status)
	if err != nil {
		return nil, err
	}
	out.Results = views
	return out, nil
}

// Get returns one chat opinion booking. Anonymous callers may only read
// guest bookings whose patient has no parent account; signed-in callers
// read within their scope.
func (s *Service) Get(ctx context.Context, id uint, caller *models.User) (*models.Booking, error) {
	bookings, err := s.load(ctx, []uint{id})
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, apperr.NotFound(EntityBooking, id)
	}
	b := &bookings[0]
	if b.ServiceType != models.ServiceChatOpinion {
		return nil, apperr.NotFound(EntityBooking, id)
	}

	if caller == nil {
		if b.IsGuest && (b.Patient == nil || b.Patient.ParentID == nil) {
			return b, nil
		}
		return nil, apperr.Unauthenticated(MsgNotAuthenticated)
	}
	var n int64
	if err := s.Scope(ctx, caller).Where("bookings.id = ?", id).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("booking: scope check %d: %w", id, err)
	}
	if n == 0 {
		return nil, apperr.NotFound(EntityBooking, id)
	}
	return b, nil
}

// load fetches bookings with their relations, in the order of ids.
func (s *Service) load(ctx context.Context, ids []uint) ([]models.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Preload("Doctor.User").
		Preload("Patient").
		Preload("Attachments").
		Where("id IN ?", ids).
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("booking: load %v: %w", ids, err)
	}
	pos := make(map[uint]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	sort.Slice(bookings, func(i, j int) bool { return pos[bookings[i].ID] < pos[bookings[j].ID] })
	return bookings, nil
}
