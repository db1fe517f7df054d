// Package alert posts operational alerts to the staff chat channel
// (Slack or Discord). Platform adapters live in subpackages.
package alert

import (
	"context"
	"sync"
)

// Severities and their sidebar colors.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

var severityColors = map[string]string{
	SeverityInfo:    "#439fe0",
	SeverityWarning: "#daa038",
	SeverityError:   "#d00000",
}

// Alert is a platform-neutral staff notice.
type Alert struct {
	Title    string
	Body     string
	Severity string
	Fields   []Field
}

// Field is a key-value pair rendered alongside the alert.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Color returns the sidebar color for the alert's severity.
func (a Alert) Color() string {
	if c, ok := severityColors[a.Severity]; ok {
		return c
	}
	return severityColors[SeverityInfo]
}

// Sender delivers alerts to a chat platform.
type Sender interface {
	Send(ctx context.Context, a Alert) error
}

// Nop drops every alert. Used when no platform is configured.
type Nop struct{}

// Send does nothing.
func (Nop) Send(context.Context, Alert) error { return nil }

// Mock records alerts for tests.
type Mock struct {
	mu   sync.Mutex
	sent []Alert
	Err  error
}

// Send records a, or returns Err when set.
func (m *Mock) Send(_ context.Context, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, a)
	return nil
}

// Sent returns a copy of the recorded alerts.
func (m *Mock) Sent() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.sent))
	copy(out, m.sent)
	return out
}
