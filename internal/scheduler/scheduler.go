// Package scheduler contains the pure appointment scheduling engine: slot
// grid expansion, walk-in capacity reservation, doctor delay propagation and
// queue ordering with automatic status transitions. It performs no I/O and
// reads no clocks; callers pass snapshots in and persist decisions out.
package scheduler

import "time"

// Clock is the wall-clock layout used across availability records.
const Clock = "15:04"

// ConsultationDuration is the default slot length.
const ConsultationDuration = 15 * time.Minute

// ThresholdWindow separates an appointment's slot time from its cutoff and
// no-show thresholds.
const ThresholdWindow = 15 * time.Minute

// Session is one contiguous availability block on a given weekday, both ends
// wall-clock strings with no date component.
type Session struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Slot is a single candidate appointment slot. Index is global across all
// sessions of the day, assigned in chronological order.
type Slot struct {
	Index   int       `json:"index"`
	Session int       `json:"session"`
	Time    time.Time `json:"time"`
}

// Clock returns the slot's wall-clock representation, the form slot times are
// persisted and matched in.
func (s Slot) Clock() string {
	return s.Time.Format(Clock)
}

// BreakInterval is a contiguous span in which the doctor is unavailable,
// produced by merging adjacent leave-slot markers.
type BreakInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the interval (half-open).
func (b BreakInterval) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusSkipped   Status = "SKIPPED"
	StatusNoShow    Status = "NO_SHOW"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ConsultationStatus is the doctor's live state as reported by clinic staff.
type ConsultationStatus string

const (
	ConsultationOut   ConsultationStatus = "OUT"
	ConsultationIn    ConsultationStatus = "IN"
	ConsultationBreak ConsultationStatus = "BREAK"
	ConsultationDone  ConsultationStatus = "DONE"
)

// TokenAdvance and TokenWalkIn prefix issued queue tokens.
const (
	TokenAdvance = 'A'
	TokenWalkIn  = 'W'
)

// ClockSet is a set of wall-clock slot times ("15:04").
type ClockSet map[string]struct{}

// Has reports membership for the given time's wall-clock value.
func (cs ClockSet) Has(t time.Time) bool {
	if cs == nil {
		return false
	}
	_, ok := cs[t.Format(Clock)]
	return ok
}

// parseClock resolves a wall-clock string onto the given calendar date,
// preserving the date's location. Malformed values fail closed.
func parseClock(date time.Time, value string) (time.Time, bool) {
	parsed, err := time.Parse(Clock, value)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), true
}

// sameDay reports whether two instants fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
