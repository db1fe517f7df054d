package booking

import (
	"context"

	"github.com/zulandar/chatopinion/internal/bucket"
	"github.com/zulandar/chatopinion/internal/document"
	"github.com/zulandar/chatopinion/internal/intake"
	"github.com/zulandar/chatopinion/internal/models"
)

// PatientView is the patient as shown on a booking. MedicalDetails is
// omitted unless the booking allows data sharing.
type PatientView struct {
	ID             uint    `json:"id"`
	FullName       string  `json:"full_name"`
	Gender         string  `json:"gender"`
	MedicalDetails *string `json:"medical_details,omitempty"`
}

// DoctorView is the assigned doctor as shown on a booking.
type DoctorView struct {
	ID          uint   `json:"id"`
	FullName    string `json:"full_name"`
	Slug        string `json:"slug"`
	Speciality  string `json:"speciality"`
	OpinionFees int64  `json:"opinion_fees"`
}

// View is a booking as returned to API clients.
type View struct {
	ID            uint                `json:"id"`
	Status        string              `json:"status"`
	StatusDisplay string              `json:"status_display"`
	Patient       *PatientView        `json:"patient"`
	Doctor        *DoctorView         `json:"doctor"`
	CreationTime  string              `json:"creation_time"`
	CreationDate  string              `json:"creation_date"`
	Attachments   []document.Link     `json:"attachments"`
	QuestionsAns  []intake.AnswerView `json:"questions_ans"`
	CanShareData  bool                `json:"can_share_data"`
}

// Views renders loaded bookings. filter is the list status filter in
// effect and only changes the display label. Intake answers for all of
// them are loaded in one batch.
func (s *Service) Views(ctx context.Context, bookings []models.Booking, filter string) ([]View, error) {
	ids := make([]uint, 0, len(bookings))
	for i := range bookings {
		ids = append(ids, bookings[i].ID)
	}
	answers, err := intake.AnswersForBookings(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(bookings))
	for i := range bookings {
		out = append(out, s.view(&bookings[i], filter, answers[bookings[i].ID]))
	}
	return out, nil
}

// View renders one booking loaded with its doctor, patient and
// attachments.
func (s *Service) View(ctx context.Context, b *models.Booking, filter string) (*View, error) {
	answers, err := intake.AnswersFor(s.db.WithContext(ctx), b.ID)
	if err != nil {
		return nil, err
	}
	v := s.view(b, filter, answers)
	return &v, nil
}

func (s *Service) view(b *models.Booking, filter string, answers []intake.AnswerView) View {
	if answers == nil {
		answers = []intake.AnswerView{}
	}
	created := b.CreatedAt.In(s.loc)
	return View{
		ID:            b.ID,
		Status:        b.Status,
		StatusDisplay: bucket.Label(b.Status, filter),
		Patient:       patientView(b.Patient, b.CanShareData),
		Doctor:        doctorView(b.Doctor),
		CreationTime:  created.Format("03:04 PM"),
		CreationDate:  created.Format("Jan 02, 2006"),
		Attachments:   document.Links(s.docs, b.Attachments),
		QuestionsAns:  answers,
		CanShareData:  b.CanShareData,
	}
}

func patientView(p *models.Patient, share bool) *PatientView {
	if p == nil {
		return nil
	}
	v := &PatientView{ID: p.ID, FullName: p.FullName, Gender: p.Gender}
	if share {
		details := p.MedicalDetails
		v.MedicalDetails = &details
	}
	return v
}

func doctorView(d *models.Doctor) *DoctorView {
	if d == nil {
		return nil
	}
	return &DoctorView{
		ID:          d.ID,
		FullName:    d.User.DisplayName(),
		Slug:        d.User.Slug,
		Speciality:  d.Speciality,
		OpinionFees: d.OpinionFees,
	}
}
