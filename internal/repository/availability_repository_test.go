package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

func TestGetWeeklyNoRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM doctor_availability WHERE doctor_id = $1 AND day_of_week = $2")).
		WithArgs("d1", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	avail, err := repo.GetWeekly(context.Background(), "d1", 0)
	require.NoError(t, err)
	assert.Nil(t, avail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWeekly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "doctor_id", "day_of_week", "sessions", "created_at", "updated_at"}).
		AddRow("w1", "d1", 1, []byte(`[{"start":"09:00","end":"12:00"}]`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM doctor_availability WHERE doctor_id = $1 AND day_of_week = $2")).
		WithArgs("d1", 1).
		WillReturnRows(rows)

	avail, err := repo.GetWeekly(context.Background(), "d1", 1)
	require.NoError(t, err)
	require.NotNil(t, avail)
	require.Len(t, avail.Sessions, 1)
	assert.Equal(t, "09:00", avail.Sessions[0].Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertWeekly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO doctor_availability").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertWeekly(context.Background(), &models.WeeklyAvailability{
		DoctorID:  "d1",
		DayOfWeek: 1,
		Sessions:  models.SessionList{{Start: "09:00", End: "12:00"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestExtensions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "doctor_id", "date", "session_index", "extended_end", "created_at"}).
		AddRow("e1", "d1", date, 0, "12:30", now).
		AddRow("e2", "d1", date, 1, "17:45", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (session_index)")).
		WithArgs("d1", date).
		WillReturnRows(rows)

	extensions, err := repo.LatestExtensions(context.Background(), "d1", date)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "12:30", 1: "17:45"}, extensions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeaveSlotsIgnoresDuplicates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO leave_slots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO leave_slots").WillReturnResult(sqlmock.NewResult(0, 0))

	slots := []models.LeaveSlot{
		{DoctorID: "d1", Date: date, SlotTime: "10:00"},
		{DoctorID: "d1", Date: date, SlotTime: "10:15"},
	}
	err := repo.CreateLeaveSlots(context.Background(), slots)
	require.NoError(t, err)
	assert.NotEmpty(t, slots[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
