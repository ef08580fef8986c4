package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

// ErrSlotTaken is returned when the conditional claim write loses the race
// for a slot. Callers retry the slot search against refreshed state.
var ErrSlotTaken = errors.New("slot already claimed")

const appointmentColumns = `id, clinic_id, doctor_id, patient_id, patient_name, patient_phone, date, slot_time, token, status, cut_off_time, no_show_time, doctor_delay_minutes, cancelled_by_break, created_at, updated_at`

// AppointmentRepository provides persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListByDoctorDate returns all appointments for a doctor-day ordered by slot
// time; the engine applies the full queue order in memory.
func (r *AppointmentRepository) ListByDoctorDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE doctor_id = $1 AND date = $2 ORDER BY slot_time ASC, token ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("list appointments by doctor date: %w", err)
	}
	return appts, nil
}

// List returns appointments with optional filtering and pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClinicID != "" {
		conditions = append(conditions, fmt.Sprintf("clinic_id = $%d", len(args)+1))
		args = append(args, filter.ClinicID)
	}
	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, slot_time ASC LIMIT %d OFFSET %d", appointmentColumns, base, size, offset)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appts, total, nil
}

// Create inserts an appointment. Two partial unique indexes over live
// statuses back it: (doctor_id, date, slot_time) arbitrates the slot and
// (doctor_id, date, token) arbitrates the token counter. Either violation
// surfaces as ErrSlotTaken and re-enters the booking retry loop.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, clinic_id, doctor_id, patient_id, patient_name, patient_phone, date, slot_time, token, status, cut_off_time, no_show_time, doctor_delay_minutes, cancelled_by_break, created_at, updated_at) VALUES (:id, :clinic_id, :doctor_id, :patient_id, :patient_name, :patient_phone, :date, :slot_time, :token, :status, :cut_off_time, :no_show_time, :doctor_delay_minutes, :cancelled_by_break, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSlotTaken
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// NextTokenSequence returns the next numeric token sequence for a doctor-day
// and token type prefix. The read is optimistic: concurrent bookings for
// different slots of the same doctor-day can observe the same max, and the
// (doctor_id, date, token) unique index rejects the duplicate mint on
// insert.
func (r *AppointmentRepository) NextTokenSequence(ctx context.Context, doctorID string, date time.Time, prefix string) (int, error) {
	const query = `SELECT COALESCE(MAX(CAST(SUBSTRING(token FROM 2) AS INTEGER)), 0) FROM appointments WHERE doctor_id = $1 AND date = $2 AND token LIKE $3`
	var current int
	if err := r.db.GetContext(ctx, &current, query, doctorID, date, prefix+"%"); err != nil {
		return 0, fmt.Errorf("next token sequence: %w", err)
	}
	return current + 1, nil
}

// UpdateStatusIf transitions the appointment status only when the stored
// status still matches expected, keeping the level-triggered sweep
// idempotent under concurrent pollers.
func (r *AppointmentRepository) UpdateStatusIf(ctx context.Context, id string, expected, next models.AppointmentStatus) (bool, error) {
	const query = `UPDATE appointments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, expected, next, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update appointment status result: %w", err)
	}
	return affected == 1, nil
}

// Cancel marks an appointment cancelled; byBreak records break-driven
// cancellations separately from patient-initiated ones.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string, byBreak bool) error {
	const query = `UPDATE appointments SET status = $2, cancelled_by_break = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.AppointmentStatus("CANCELLED"), byBreak, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	return nil
}

// CancelByBreak cancels the given live appointments in one statement,
// flagging them as break-cancelled.
func (r *AppointmentRepository) CancelByBreak(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE appointments SET status = 'CANCELLED', cancelled_by_break = TRUE, updated_at = $2 WHERE id = ANY($1)`
	if _, err := exec.ExecContext(ctx, query, pq.Array(ids), time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel appointments by break: %w", err)
	}
	return nil
}

// UpdateThresholdsBatch applies a delay propagation batch for one doctor-day
// inside a single transaction so the queue sweep never observes a torn mix
// of delayed and non-delayed thresholds.
func (r *AppointmentRepository) UpdateThresholdsBatch(ctx context.Context, updates []models.ThresholdUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin threshold batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `UPDATE appointments SET cut_off_time = $2, no_show_time = $3, doctor_delay_minutes = $4, updated_at = $5 WHERE id = $1`
	for _, update := range updates {
		if _, err = tx.ExecContext(ctx, query, update.AppointmentID, update.CutOffTime, update.NoShowTime, update.DoctorDelayMinutes, now); err != nil {
			return fmt.Errorf("update thresholds for %s: %w", update.AppointmentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit threshold batch: %w", err)
	}
	return nil
}

// ListSweepable returns the appointments the status sweep inspects for a
// date: pending and skipped entries across all doctors.
func (r *AppointmentRepository) ListSweepable(ctx context.Context, date time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE date = $1 AND status IN ('PENDING', 'SKIPPED') ORDER BY doctor_id, slot_time ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, date); err != nil {
		return nil, fmt.Errorf("list sweepable appointments: %w", err)
	}
	return appts, nil
}

// BookedSlotTimes returns slot times of advance appointments occupying
// capacity (pending, confirmed or completed) for a doctor-day.
func (r *AppointmentRepository) BookedSlotTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	const query = `SELECT slot_time FROM appointments WHERE doctor_id = $1 AND date = $2 AND status IN ('PENDING', 'CONFIRMED', 'COMPLETED')`
	var times []string
	if err := r.db.SelectContext(ctx, &times, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("booked slot times: %w", err)
	}
	return times, nil
}

// LiveBySlotTimes returns live (pending/confirmed) appointments at the given
// slot times for break-cancellation handling.
func (r *AppointmentRepository) LiveBySlotTimes(ctx context.Context, doctorID string, date time.Time, slotTimes []string) ([]models.Appointment, error) {
	if len(slotTimes) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE doctor_id = $1 AND date = $2 AND slot_time = ANY($3) AND status IN ('PENDING', 'CONFIRMED')`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, date, pq.Array(slotTimes)); err != nil {
		return nil, fmt.Errorf("live appointments by slot: %w", err)
	}
	return appts, nil
}

// DB exposes the underlying handle for services that coordinate their own
// transactions.
func (r *AppointmentRepository) DB() *sqlx.DB {
	return r.db
}
