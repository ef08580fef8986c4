package models

import (
	"time"

	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
)

// AppointmentStatus aliases the engine's status set so persisted rows and
// engine decisions share one vocabulary.
type AppointmentStatus = scheduler.Status

// Appointment belongs to a (clinic, doctor, date). CutOffTime and NoShowTime
// are persisted derived thresholds: written at booking, recomputed only by
// the delay propagation path, and read by the status sweep.
type Appointment struct {
	ID                 string            `db:"id" json:"id"`
	ClinicID           string            `db:"clinic_id" json:"clinic_id"`
	DoctorID           string            `db:"doctor_id" json:"doctor_id"`
	PatientID          *string           `db:"patient_id" json:"patient_id,omitempty"`
	PatientName        string            `db:"patient_name" json:"patient_name"`
	PatientPhone       string            `db:"patient_phone" json:"patient_phone"`
	Date               time.Time         `db:"date" json:"date"`
	SlotTime           string            `db:"slot_time" json:"slot_time"`
	Token              string            `db:"token" json:"token"`
	Status             AppointmentStatus `db:"status" json:"status"`
	CutOffTime         *time.Time        `db:"cut_off_time" json:"cut_off_time,omitempty"`
	NoShowTime         *time.Time        `db:"no_show_time" json:"no_show_time,omitempty"`
	DoctorDelayMinutes int               `db:"doctor_delay_minutes" json:"doctor_delay_minutes"`
	CancelledByBreak   bool              `db:"cancelled_by_break" json:"cancelled_by_break"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// SlotDateTime resolves the appointment's slot onto its calendar date.
// Malformed legacy values return the zero time.
func (a Appointment) SlotDateTime() time.Time {
	parsed, err := time.Parse(scheduler.Clock, a.SlotTime)
	if err != nil {
		return time.Time{}
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, a.Date.Location())
}

// QueueEntry projects the appointment into the engine's ordering view.
func (a Appointment) QueueEntry() scheduler.QueueEntry {
	return scheduler.QueueEntry{
		ID:       a.ID,
		Date:     a.Date,
		SlotTime: a.SlotDateTime(),
		Token:    a.Token,
		Status:   a.Status,
		CutOff:   a.CutOffTime,
		NoShow:   a.NoShowTime,
	}
}

// AppointmentFilter captures filtering criteria for listing appointments.
type AppointmentFilter struct {
	ClinicID  string
	DoctorID  string
	PatientID string
	Date      *time.Time
	Statuses  []AppointmentStatus
	Page      int
	PageSize  int
}

// ThresholdUpdate is one row of a delay propagation batch write.
type ThresholdUpdate struct {
	AppointmentID      string    `json:"appointment_id"`
	CutOffTime         time.Time `json:"cut_off_time"`
	NoShowTime         time.Time `json:"no_show_time"`
	DoctorDelayMinutes int       `json:"doctor_delay_minutes"`
}

// StatusChange is a status transition decision for the persistence layer and
// the notification collaborator.
type StatusChange struct {
	AppointmentID string            `json:"appointment_id"`
	DoctorID      string            `json:"doctor_id"`
	ClinicID      string            `json:"clinic_id"`
	Token         string            `json:"token"`
	OldStatus     AppointmentStatus `json:"old_status"`
	NewStatus     AppointmentStatus `json:"new_status"`
}
