package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
)

// SessionList is a JSONB column holding a day's ordered sessions.
type SessionList []scheduler.Session

// Value implements driver.Valuer.
func (s SessionList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SessionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported session list type %T", src)
	}
}

// WeeklyAvailability is one weekday's session plan for a doctor. DayOfWeek
// follows time.Weekday (0 = Sunday).
type WeeklyAvailability struct {
	ID        string      `db:"id" json:"id"`
	DoctorID  string      `db:"doctor_id" json:"doctor_id"`
	DayOfWeek int         `db:"day_of_week" json:"day_of_week"`
	Sessions  SessionList `db:"sessions" json:"sessions"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// AvailabilityExtension extends one session's end time on a specific date.
// Only the latest extension per (date, session) applies, and only when it is
// later than the base end.
type AvailabilityExtension struct {
	ID           string    `db:"id" json:"id"`
	DoctorID     string    `db:"doctor_id" json:"doctor_id"`
	Date         time.Time `db:"date" json:"date"`
	SessionIndex int       `db:"session_index" json:"session_index"`
	ExtendedEnd  string    `db:"extended_end" json:"extended_end"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// LeaveSlot marks the doctor unavailable for one consultation-duration
// interval beginning at SlotTime on Date.
type LeaveSlot struct {
	ID        string    `db:"id" json:"id"`
	DoctorID  string    `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"date" json:"date"`
	SlotTime  string    `db:"slot_time" json:"slot_time"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
