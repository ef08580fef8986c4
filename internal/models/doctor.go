package models

import (
	"time"

	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
)

// Doctor represents a consulting doctor attached to a clinic.
type Doctor struct {
	ID                  string                       `db:"id" json:"id"`
	ClinicID            string                       `db:"clinic_id" json:"clinic_id"`
	Name                string                       `db:"name" json:"name"`
	Specialty           string                       `db:"specialty" json:"specialty"`
	ConsultationMinutes int                          `db:"consultation_minutes" json:"consultation_minutes"`
	Status              scheduler.ConsultationStatus `db:"status" json:"status"`
	StatusChangedAt     *time.Time                   `db:"status_changed_at" json:"status_changed_at,omitempty"`
	Active              bool                         `db:"active" json:"active"`
	CreatedAt           time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time                    `db:"updated_at" json:"updated_at"`
}

// ConsultationDuration resolves the doctor's slot length with the platform
// default applied.
func (d Doctor) ConsultationDuration() time.Duration {
	if d.ConsultationMinutes <= 0 {
		return scheduler.ConsultationDuration
	}
	return time.Duration(d.ConsultationMinutes) * time.Minute
}

// DoctorFilter captures filtering criteria for listing doctors.
type DoctorFilter struct {
	ClinicID  string
	Specialty string
	Active    *bool
	Page      int
	PageSize  int
}
