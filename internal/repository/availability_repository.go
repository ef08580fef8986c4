package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

// AvailabilityRepository persists weekly availability, per-date extensions
// and leave markers. All three are read-only inputs to the scheduler.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// GetWeekly returns the availability row for a doctor and weekday, or nil
// when none is defined (the doctor does not consult that day).
func (r *AvailabilityRepository) GetWeekly(ctx context.Context, doctorID string, dayOfWeek int) (*models.WeeklyAvailability, error) {
	const query = `SELECT id, doctor_id, day_of_week, sessions, created_at, updated_at FROM doctor_availability WHERE doctor_id = $1 AND day_of_week = $2`
	var avail models.WeeklyAvailability
	if err := r.db.GetContext(ctx, &avail, query, doctorID, dayOfWeek); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get weekly availability: %w", err)
	}
	return &avail, nil
}

// ListWeekly returns all weekday rows for a doctor.
func (r *AvailabilityRepository) ListWeekly(ctx context.Context, doctorID string) ([]models.WeeklyAvailability, error) {
	const query = `SELECT id, doctor_id, day_of_week, sessions, created_at, updated_at FROM doctor_availability WHERE doctor_id = $1 ORDER BY day_of_week ASC`
	var rows []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &rows, query, doctorID); err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	return rows, nil
}

// UpsertWeekly replaces the session plan for a doctor-weekday pair.
func (r *AvailabilityRepository) UpsertWeekly(ctx context.Context, avail *models.WeeklyAvailability) error {
	if avail.ID == "" {
		avail.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if avail.CreatedAt.IsZero() {
		avail.CreatedAt = now
	}
	avail.UpdatedAt = now

	const query = `INSERT INTO doctor_availability (id, doctor_id, day_of_week, sessions, created_at, updated_at)
		VALUES (:id, :doctor_id, :day_of_week, :sessions, :created_at, :updated_at)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE SET sessions = EXCLUDED.sessions, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, avail); err != nil {
		return fmt.Errorf("upsert weekly availability: %w", err)
	}
	return nil
}

// LatestExtensions returns the newest extension per session index for a
// doctor-date; older rows for the same session are superseded.
func (r *AvailabilityRepository) LatestExtensions(ctx context.Context, doctorID string, date time.Time) (map[int]string, error) {
	const query = `SELECT DISTINCT ON (session_index) id, doctor_id, date, session_index, extended_end, created_at
		FROM availability_extensions WHERE doctor_id = $1 AND date = $2
		ORDER BY session_index ASC, created_at DESC`
	var rows []models.AvailabilityExtension
	if err := r.db.SelectContext(ctx, &rows, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("latest extensions: %w", err)
	}
	extensions := make(map[int]string, len(rows))
	for _, row := range rows {
		extensions[row.SessionIndex] = row.ExtendedEnd
	}
	return extensions, nil
}

// CreateExtension records a session extension for a specific date.
func (r *AvailabilityRepository) CreateExtension(ctx context.Context, ext *models.AvailabilityExtension) error {
	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	if ext.CreatedAt.IsZero() {
		ext.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO availability_extensions (id, doctor_id, date, session_index, extended_end, created_at) VALUES (:id, :doctor_id, :date, :session_index, :extended_end, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ext); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	return nil
}

// ListLeaveSlots returns leave markers for a doctor-date ordered by slot
// time.
func (r *AvailabilityRepository) ListLeaveSlots(ctx context.Context, doctorID string, date time.Time) ([]models.LeaveSlot, error) {
	const query = `SELECT id, doctor_id, date, slot_time, reason, created_at FROM leave_slots WHERE doctor_id = $1 AND date = $2 ORDER BY slot_time ASC`
	var rows []models.LeaveSlot
	if err := r.db.SelectContext(ctx, &rows, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("list leave slots: %w", err)
	}
	return rows, nil
}

// CreateLeaveSlots inserts leave markers, ignoring duplicates on
// (doctor_id, date, slot_time).
func (r *AvailabilityRepository) CreateLeaveSlots(ctx context.Context, slots []models.LeaveSlot) error {
	now := time.Now().UTC()
	const query = `INSERT INTO leave_slots (id, doctor_id, date, slot_time, reason, created_at) VALUES (:id, :doctor_id, :date, :slot_time, :reason, :created_at) ON CONFLICT (doctor_id, date, slot_time) DO NOTHING`
	for i := range slots {
		slot := slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := r.db.NamedExecContext(ctx, query, &slot); err != nil {
			return fmt.Errorf("create leave slot: %w", err)
		}
		slots[i] = slot
	}
	return nil
}

// DeleteLeaveSlot removes one leave marker.
func (r *AvailabilityRepository) DeleteLeaveSlot(ctx context.Context, doctorID string, date time.Time, slotTime string) error {
	const query = `DELETE FROM leave_slots WHERE doctor_id = $1 AND date = $2 AND slot_time = $3`
	if _, err := r.db.ExecContext(ctx, query, doctorID, date, slotTime); err != nil {
		return fmt.Errorf("delete leave slot: %w", err)
	}
	return nil
}
