// Package reply implements the per-booking reply budget.
//
// Patients may send at most Limit messages on a booking; the cap is never
// reset. Doctors are not capped when sending, but their historical budget
// counter runs one higher so a thread ends on the doctor's answer.
package reply

import "fmt"

// DefaultLimit is the patient reply cap used when none is configured.
const DefaultLimit = 3

// Policy is the reply budget for one deployment.
type Policy struct {
	Limit int
}

// Default returns the policy with DefaultLimit.
func Default() Policy {
	return Policy{Limit: DefaultLimit}
}

// New returns a policy with the given limit; a non-positive limit falls
// back to DefaultLimit.
func New(limit int) Policy {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Policy{Limit: limit}
}

func (p Policy) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// CanPatientReply reports whether a patient who already sent
// priorPatientMessages on the booking may send another one.
func (p Policy) CanPatientReply(priorPatientMessages int64) bool {
	return priorPatientMessages < int64(p.limit())
}

// Budget is the number of messages the cohort may send over the booking's
// lifetime.
func (p Policy) Budget(isDoctor bool) int {
	if isDoctor {
		return p.limit() + 1
	}
	return p.limit()
}

// RepliesRemaining returns the budget left after countAtOrBefore messages of
// the same cohort. It can go negative for rows written under a larger limit.
func (p Policy) RepliesRemaining(isDoctor bool, countAtOrBefore int64) int {
	return p.Budget(isDoctor) - int(countAtOrBefore)
}

// LimitMessage is the fixed user-facing rejection for an exhausted budget.
func (p Policy) LimitMessage() string {
	return fmt.Sprintf("Maximum Replies limit is %d", p.limit())
}
