package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/booking"
	"github.com/zulandar/chatopinion/internal/bucket"
	"github.com/zulandar/chatopinion/internal/complaint"
	"github.com/zulandar/chatopinion/internal/conversation"
	"github.com/zulandar/chatopinion/internal/intake"
	"github.com/zulandar/chatopinion/internal/models"
)

// registerRoutes sets up all API routes on the gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	if s.deps.MediaRoot != "" {
		router.Static("/media", s.deps.MediaRoot)
	}

	v1 := router.Group("/api/v1", s.authenticate())

	v1.POST("/complaint/", s.handleFileComplaint)

	v1.GET("/chat/", s.handleListMessages)
	v1.POST("/chat/", s.handleCreateMessage)

	v1.GET("/chat-opinion/", s.handleListBookings)
	v1.GET("/chat-opinion/:id/", s.handleGetBooking)
	v1.POST("/chat-opinion/:id/accept/", s.handleAccept)
	v1.POST("/chat-opinion/:id/completed/", s.handleComplete)
	v1.POST("/chat-opinion/:id/answers/", s.handleSaveAnswers)

	v1.GET("/questions/", s.handleListQuestions)
}

// ID is a primary key sent either as a JSON number or a numeric string.
type ID uint

// UnmarshalJSON accepts 13 and "13".
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(n)
	return nil
}

func (id *ID) ptr() *uint {
	if id == nil || *id == 0 {
		return nil
	}
	v := uint(*id)
	return &v
}

// bindJSON decodes the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

// pathID parses the :id path parameter. An invalid value is a 404.
func pathID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return uint(n), true
}

type complaintRequest struct {
	Description string `json:"description"`
	Booking     ID     `json:"booking"`
}

type complaintResponse struct {
	ID          uint   `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Booking     uint   `json:"booking"`
	User        *uint  `json:"user"`
}

func (s *Server) handleFileComplaint(c *gin.Context) {
	var req complaintRequest
	if !bindJSON(c, &req) {
		return
	}
	filed, err := s.deps.Complaints.File(c.Request.Context(), complaint.Input{
		Actor:       currentUser(c),
		BookingID:   uint(req.Booking),
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaintResponse{
		ID:          filed.ID,
		Type:        filed.Type,
		Description: filed.Description,
		Booking:     filed.BookingID,
		User:        filed.UserID,
	})
}

func (s *Server) handleListMessages(c *gin.Context) {
	var bookingID uint
	if raw := c.Query("booking"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(c, apperr.Validation("booking", conversation.MsgInvalidBooking))
			return
		}
		bookingID = uint(n)
	}
	ctx := c.Request.Context()
	msgs, err := s.deps.Conversations.List(ctx, bookingID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	views, err := s.deps.Conversations.Views(ctx, msgs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type messageRequest struct {
	Patient ID                  `json:"patient"`
	Doctor  ID                  `json:"doctor"`
	Booking ID                  `json:"booking"`
	Message string              `json:"message"`
	Files   []map[string]string `json:"files"`
}

func (s *Server) handleCreateMessage(c *gin.Context) {
	var req messageRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	msg, err := s.deps.Conversations.Create(ctx, conversation.CreateInput{
		Actor:     currentUser(c),
		BookingID: uint(req.Booking),
		PatientID: req.Patient.ptr(),
		DoctorID:  req.Doctor.ptr(),
		Message:   req.Message,
		Files:     req.Files,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	views, err := s.deps.Conversations.Views(ctx, []models.ConversationMessage{*msg})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, views[0])
}

type bookingListResponse struct {
	Count    int64          `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []booking.View `json:"results"`
	bucket.Counts
}

func (s *Server) handleListBookings(c *gin.Context) {
	caller := currentUser(c)
	if caller == nil {
		writeError(c, apperr.Unauthenticated(booking.MsgNotAuthenticated))
		return
	}
	params := booking.ListParams{Status: c.Query("status")}
	for key, dst := range map[string]*int{"page": &params.Page, "page_size": &params.PageSize} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		*dst = n
	}

	page, err := s.deps.Bookings.List(c.Request.Context(), caller, params)
	if err != nil {
		if apperr.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		writeError(c, err)
		return
	}

	resp := bookingListResponse{
		Count:   page.Count,
		Results: page.Results,
		Counts:  page.Counts,
	}
	if page.HasNext() {
		resp.Next = s.pageURL(c, page.Page+1)
	}
	if page.Page > 1 {
		resp.Previous = s.pageURL(c, page.Page-1)
	}
	c.JSON(http.StatusOK, resp)
}

// pageURL rewrites the request URL to point at another page. The first
// page drops the page parameter.
func (s *Server) pageURL(c *gin.Context, page int) *string {
	q := url.Values{}
	for k, v := range c.Request.URL.Query() {
		q[k] = v
	}
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := strings.TrimRight(s.deps.PublicURL, "/") + c.Request.URL.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return &u
}

func (s *Server) handleGetBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	b, err := s.deps.Bookings.Get(ctx, id, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	s.writeBooking(c, b, c.Query("status"))
}

func (s *Server) handleAccept(c *gin.Context) {
	s.transition(c, s.deps.Bookings.Accept)
}

func (s *Server) handleComplete(c *gin.Context) {
	s.transition(c, s.deps.Bookings.Complete)
}

type transitionFunc func(ctx context.Context, id uint, actor *models.User) (*models.Booking, error)

func (s *Server) transition(c *gin.Context, fn transitionFunc) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := fn(ctx, id, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	b, err := s.deps.Bookings.Get(ctx, id, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	s.writeBooking(c, b, "")
}

func (s *Server) writeBooking(c *gin.Context, b *models.Booking, filter string) {
	v, err := s.deps.Bookings.View(c.Request.Context(), b, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type answersRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) handleSaveAnswers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req answersRequest
	if !bindJSON(c, &req) {
		return
	}
	caller := currentUser(c)
	if caller == nil {
		writeError(c, apperr.Unauthenticated(booking.MsgNotAuthenticated))
		return
	}
	ctx := c.Request.Context()
	b, err := s.deps.Bookings.Get(ctx, id, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	if !caller.Owns(b) {
		writeError(c, apperr.Validation("booking", conversation.MsgInvalidBooking))
		return
	}
	if _, err := intake.SaveAnswers(s.deps.DB.WithContext(ctx), intake.Target{BookingID: &b.ID}, req.Answers); err != nil {
		writeError(c, err)
		return
	}
	answers, err := intake.AnswersFor(s.deps.DB.WithContext(ctx), b.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

type questionResponse struct {
	Code      string `json:"code"`
	Label     string `json:"label"`
	HelpText  string `json:"help_text"`
	FieldType string `json:"field_type"`
	Required  bool   `json:"required"`
}

func (s *Server) handleListQuestions(c *gin.Context) {
	qs, err := intake.ListQuestions(s.deps.DB.WithContext(c.Request.Context()))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]questionResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionResponse{
			Code:      q.Code,
			Label:     q.Label,
			HelpText:  q.HelpText,
			FieldType: q.FieldType,
			Required:  q.Required,
		})
	}
	c.JSON(http.StatusOK, out)
}
