// Package conversation stores the messages exchanged on a chat opinion
// booking and enforces the patient reply cap when they are created.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/changelog"
	"github.com/zulandar/chatopinion/internal/document"
	"github.com/zulandar/chatopinion/internal/lock"
	"github.com/zulandar/chatopinion/internal/models"
	"github.com/zulandar/chatopinion/internal/notification"
	"github.com/zulandar/chatopinion/internal/reply"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User-facing validation messages.
const (
	MsgMissingBooking = "Please Provide booking id"
	MsgInvalidBooking = "Invalid booking id"
	MsgBookingClosed  = "This booking is closed by doctor"
	MsgInvalidFile    = "Upload a valid file."
	MsgNotLoggedIn    = "Authentication credentials were not provided."
)

// EntityMessage is the change-log entity name for conversation messages.
const EntityMessage = "conversation_message"

// DocumentStore is the subset of the document store used for attachments.
type DocumentStore interface {
	GetOrCreateCollection(name string) (*models.Collection, error)
	Save(name string, data []byte, collection *models.Collection, uploadedBy *uint) (*models.Document, error)
	URL(doc models.Document) string
}

// Service creates and lists conversation messages.
type Service struct {
	db      *gorm.DB
	locker  lock.Locker
	docs    DocumentStore
	changes changelog.Recorder
	policy  reply.Policy
}

// Options configures a Service. Zero fields get defaults: an in-process
// locker, no change log and the default reply policy.
type Options struct {
	Locker  lock.Locker
	Docs    DocumentStore
	Changes changelog.Recorder
	Policy  reply.Policy
}

// NewService returns a conversation Service.
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:      db,
		locker:  opts.Locker,
		docs:    opts.Docs,
		changes: opts.Changes,
		policy:  reply.New(opts.Policy.Limit),
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.changes == nil {
		s.changes = changelog.Nop{}
	}
	return s
}

// Policy returns the reply policy in force.
func (s *Service) Policy() reply.Policy { return s.policy }

// CreateInput is a new message. PatientID and DoctorID are kept only when
// they match the booking's patient and doctor, which fill them otherwise.
// Files use the upload wire format: a list
// of single-entry maps from display name to base64 content.
type CreateInput struct {
	Actor     *models.User
	BookingID uint
	PatientID *uint
	DoctorID  *uint
	Message   string
	Files     []map[string]string
}

// AttachError reports attachments that failed to store after the message
// itself was saved. The message is not rolled back.
type AttachError struct {
	MessageID uint
	Err       error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("conversation: message %d saved but attachments failed: %v", e.MessageID, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Create validates and stores a message. The reply-cap check and the
// insert run under the booking lock in one transaction; attachments are
// stored after the lock is released. When only the attachments fail the
// saved message is returned together with an *AttachError.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ConversationMessage, error) {
	if in.Actor == nil {
		return nil, apperr.Unauthenticated(MsgNotLoggedIn)
	}
	if in.BookingID == 0 {
		return nil, apperr.Validation("booking", MsgMissingBooking)
	}
	files, err := document.DecodeFiles(in.Files)
	if err != nil {
		return nil, apperr.Validation("files", MsgInvalidFile)
	}

	booking, err := s.loadBooking(ctx, s.db, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.IsClosed() {
		return nil, apperr.Validation("message", MsgBookingClosed)
	}

	actor := in.Actor
	doctorActor := actor.IsDoctorActor()
	if !doctorActor && !actor.Owns(booking) {
		return nil, apperr.Validation("booking", MsgInvalidBooking)
	}
	isDoctorMessage := doctorActor && booking.DoctorID != nil && *booking.DoctorID == actor.DoctorProfileID()

	unlock, err := s.locker.Lock(ctx, lock.BookingKey(booking.ID))
	if err != nil {
		return nil, fmt.Errorf("conversation: lock booking %d: %w", booking.ID, err)
	}
	var msg models.ConversationMessage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadBooking(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if current.IsClosed() {
			return apperr.Validation("message", MsgBookingClosed)
		}
		if !doctorActor {
			prior, err := countMessages(tx, booking.ID, false, 0)
			if err != nil {
				return err
			}
			if !s.policy.CanPatientReply(prior) {
				return apperr.Validation("message", s.policy.LimitMessage())
			}
		}

		msg = models.ConversationMessage{
			BookingID:       booking.ID,
			PatientID:       bookingParty(in.PatientID, current.PatientID),
			DoctorID:        bookingParty(in.DoctorID, current.DoctorID),
			IsDoctorMessage: isDoctorMessage,
			Message:         in.Message,
		}
		if isDoctorMessage && current.UserID != nil {
			n, err := notification.Create(tx, *current.UserID, replyVerb(actor, current.ID))
			if err != nil {
				return err
			}
			msg.NotificationID = &n.ID
		}
		if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
			return fmt.Errorf("conversation: create message: %w", err)
		}
		return s.changes.Record(tx, changelog.Entry{
			Entity:   EntityMessage,
			EntityID: msg.ID,
			Action:   changelog.ActionCreate,
			ActorID:  actorID(actor),
			Changes: map[string]any{
				"booking":           booking.ID,
				"is_doctor_message": isDoctorMessage,
				"message":           in.Message,
			},
		})
	})
	unlock()
	if err != nil {
		return nil, err
	}

	if len(files) > 0 {
		if err := s.attach(ctx, &msg, actor, files); err != nil {
			return &msg, &AttachError{MessageID: msg.ID, Err: err}
		}
	}
	return &msg, nil
}

// attach stores files and links them to msg on the side matching the
// message author. Files stored before a failure stay attached.
func (s *Service) attach(ctx context.Context, msg *models.ConversationMessage, actor *models.User, files []document.File) error {
	if s.docs == nil {
		return fmt.Errorf("conversation: no document store configured")
	}
	name := document.GuestCollection
	if actor.Slug != "" {
		name = actor.Slug
	}
	collection, err := s.docs.GetOrCreateCollection(name)
	if err != nil {
		return err
	}

	side := models.SidePatient
	if msg.IsDoctorMessage {
		side = models.SideDoctor
	}
	for _, f := range files {
		doc, err := s.docs.Save(f.Name, f.Data, collection, actorID(actor))
		if err != nil {
			return err
		}
		link := models.MessageAttachment{MessageID: msg.ID, DocumentID: doc.ID, Side: side}
		if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&link).Error; err != nil {
			return fmt.Errorf("conversation: attach document %d: %w", doc.ID, err)
		}
		link.Document = *doc
		msg.Attachments = append(msg.Attachments, link)
	}
	return nil
}

// List returns the caller's messages on a booking, newest first, and marks
// the caller's own notifications for the listed doctor messages read. Doctors see the
// messages addressed to them; other users see messages on bookings they
// own.
func (s *Service) List(ctx context.Context, bookingID uint, caller *models.User) ([]models.ConversationMessage, error) {
	if bookingID == 0 {
		return nil, apperr.Validation("booking", MsgMissingBooking)
	}
	if caller == nil {
		return nil, apperr.Unauthenticated(MsgNotLoggedIn)
	}

	q := s.db.WithContext(ctx).Model(&models.ConversationMessage{}).
		Where("conversation_messages.booking_id = ?", bookingID)
	if caller.IsDoctorActor() {
		q = q.Where("conversation_messages.doctor_id = ?", caller.DoctorProfileID())
	} else {
		q = q.Joins("JOIN bookings ON bookings.id = conversation_messages.booking_id").
			Where("bookings.user_id = ?", caller.ID)
	}

	var msgs []models.ConversationMessage
	if err := q.Preload("Attachments.Document").
		Order("conversation_messages.created_at DESC, conversation_messages.id DESC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("conversation: list booking %d: %w", bookingID, err)
	}

	var unread []uint
	for _, m := range msgs {
		if m.IsDoctorMessage && m.NotificationID != nil {
			unread = append(unread, *m.NotificationID)
		}
	}
	if _, err := notification.MarkRead(s.db.WithContext(ctx), caller.ID, unread); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CanPatientReply reports whether a patient may still post on a booking.
func (s *Service) CanPatientReply(ctx context.Context, bookingID uint) (bool, error) {
	n, err := countMessages(s.db.WithContext(ctx), bookingID, false, 0)
	if err != nil {
		return false, err
	}
	return s.policy.CanPatientReply(n), nil
}

// RepliesRemaining returns the budget left for the author cohort of a
// message, counting that cohort's messages on the booking up to and
// including it.
func (s *Service) RepliesRemaining(ctx context.Context, messageID uint) (int, error) {
	var msg models.ConversationMessage
	if err := s.db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("message", messageID)
		}
		return 0, fmt.Errorf("conversation: load message %d: %w", messageID, err)
	}
	n, err := countMessages(s.db.WithContext(ctx), msg.BookingID, msg.IsDoctorMessage, msg.ID)
	if err != nil {
		return 0, err
	}
	return s.policy.RepliesRemaining(msg.IsDoctorMessage, n), nil
}

func (s *Service) loadBooking(ctx context.Context, db *gorm.DB, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("booking", id)
		}
		return nil, fmt.Errorf("conversation: load booking %d: %w", id, err)
	}
	return &b, nil
}

// countMessages counts a booking's messages of one cohort. A non-zero upTo
// limits the count to messages with id <= upTo.
func countMessages(db *gorm.DB, bookingID uint, doctor bool, upTo uint) (int64, error) {
	q := db.Model(&models.ConversationMessage{}).
		Where("booking_id = ? AND is_doctor_message = ?", bookingID, doctor)
	if upTo != 0 {
		q = q.Where("id <= ?", upTo)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("conversation: count messages on booking %d: %w", bookingID, err)
	}
	return n, nil
}

func replyVerb(doctor *models.User, bookingID uint) string {
	return fmt.Sprintf("%s replied on your chat opinion #%d", doctor.DisplayName(), bookingID)
}

func actorID(u *models.User) *uint {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}

// bookingParty returns the booking's side of a message. A client value is
// only used when the booking has none recorded.
func bookingParty(client, booking *uint) *uint {
	if booking != nil {
		return booking
	}
	return client
}
