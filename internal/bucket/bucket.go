// Package bucket derives the display bucket of a chat opinion booking from
// its stored status and its conversation history.
//
// Buckets are never stored. They are recomputed on every query from a
// per-booking Summary, so any new message or status write is reflected on
// the next read.
package bucket

import "github.com/zulandar/chatopinion/internal/models"

// Bucket is a derived display category.
type Bucket string

// Buckets, in evaluation precedence.
const (
	Closed     Bucket = "closed"
	InProgress Bucket = "in-progress"
	Reply      Bucket = "reply"
	New        Bucket = "new"
	None       Bucket = ""
)

// Display labels.
const (
	LabelNew        = "New"
	LabelInProgress = "In Progress"
	LabelReply      = "Reply"
	LabelClosed     = "Closed"
)

// Summary is the conversation state the classifier needs for one booking.
// LastMessageID orders by insertion, not by timestamp.
type Summary struct {
	BookingID     uint
	MessageCount  int64
	LastMessageID uint
	LastIsDoctor  bool
}

// Classify returns the bucket for a booking status and its summary.
func Classify(status string, s Summary) Bucket {
	switch {
	case models.IsClosedStatus(status):
		return Closed
	case status == models.StatusInProgress:
		if s.MessageCount > 0 && s.LastIsDoctor {
			return InProgress
		}
		return Reply
	case status == models.StatusNew:
		return New
	}
	return None
}

// Matches reports whether a booking belongs in the list selected by filter.
// closed, in-progress and reply select by bucket; any other non-empty filter
// matches the raw status; an empty filter matches everything.
func Matches(filter, status string, s Summary) bool {
	switch Bucket(filter) {
	case "":
		return true
	case Closed, InProgress, Reply:
		return Classify(status, s) == Bucket(filter)
	}
	return status == filter
}

// Label returns the human display label of a booking status as seen from
// the list selected by filter. Unknown statuses have no label.
func Label(status, filter string) string {
	if models.IsClosedStatus(status) {
		return LabelClosed
	}
	if Bucket(filter) == Reply && status == models.StatusInProgress {
		return LabelReply
	}
	switch status {
	case models.StatusNew:
		return LabelNew
	case models.StatusInProgress:
		return LabelInProgress
	}
	return ""
}

// Counts holds per-bucket totals shown next to a booking list.
type Counts struct {
	New        int `json:"count_new"`
	InProgress int `json:"count_in_progress"`
	Reply      int `json:"count_reply"`
}

// Add classifies one booking into the totals.
func (c *Counts) Add(status string, s Summary) {
	switch Classify(status, s) {
	case New:
		c.New++
	case InProgress:
		c.InProgress++
	case Reply:
		c.Reply++
	}
}
