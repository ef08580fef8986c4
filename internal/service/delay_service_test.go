package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

func newDelayFixture(t *testing.T) (*DelayService, *stubDoctorRepo, *stubAppointmentRepo) {
	t.Helper()
	doctors := &stubDoctorRepo{doctor: testDoctor()}
	avail := &stubAvailabilityRepo{weekly: everyDay(models.SessionList{{Start: "09:00", End: "12:00"}})}
	appts := newStubAppointmentRepo()
	svc := NewDelayService(doctors, appts, NewScheduleService(doctors, avail, 16, nil), nil, nil)
	return svc, doctors, appts
}

func TestRecomputePropagatesDelay(t *testing.T) {
	svc, _, appts := newDelayFixture(t)
	svc.now = func() time.Time { return dayAt(9, 20) }
	appts.appts["a1"] = &models.Appointment{
		ID: "a1", DoctorID: "d1", Date: testDay, SlotTime: "10:00",
		Token: "A1", Status: scheduler.StatusPending,
	}

	result, err := svc.Recompute(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 20, result.DelayMinutes)

	require.Len(t, appts.thresholdCalls, 1)
	appt := appts.appts["a1"]
	require.NotNil(t, appt.CutOffTime)
	assert.Equal(t, dayAt(10, 5), *appt.CutOffTime)
	require.NotNil(t, appt.NoShowTime)
	assert.Equal(t, dayAt(10, 35), *appt.NoShowTime)
	assert.Equal(t, 20, appt.DoctorDelayMinutes)
}

func TestUpdateDoctorStatusInClearsDelay(t *testing.T) {
	svc, doctors, appts := newDelayFixture(t)
	svc.now = func() time.Time { return dayAt(9, 20) }
	appts.appts["a1"] = &models.Appointment{
		ID: "a1", DoctorID: "d1", Date: testDay, SlotTime: "10:00",
		Token: "A1", Status: scheduler.StatusPending,
	}

	result, err := svc.UpdateDoctorStatus(context.Background(), "d1", scheduler.ConsultationIn)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DelayMinutes)
	assert.Equal(t, []scheduler.ConsultationStatus{scheduler.ConsultationIn}, doctors.statusUpdates)

	appt := appts.appts["a1"]
	require.NotNil(t, appt.CutOffTime)
	assert.Equal(t, dayAt(9, 45), *appt.CutOffTime)
	require.NotNil(t, appt.NoShowTime)
	assert.Equal(t, dayAt(10, 15), *appt.NoShowTime)
}

func TestUpdateDoctorStatusRejectsUnknownValue(t *testing.T) {
	svc, doctors, _ := newDelayFixture(t)

	_, err := svc.UpdateDoctorStatus(context.Background(), "d1", scheduler.ConsultationStatus("NAPPING"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, doctors.statusUpdates)
}

func TestRecomputeSkipsTerminalAppointments(t *testing.T) {
	svc, _, appts := newDelayFixture(t)
	svc.now = func() time.Time { return dayAt(9, 20) }
	appts.appts["a1"] = &models.Appointment{
		ID: "a1", DoctorID: "d1", Date: testDay, SlotTime: "10:00",
		Token: "A1", Status: scheduler.StatusCompleted,
	}
	appts.appts["a2"] = &models.Appointment{
		ID: "a2", DoctorID: "d1", Date: testDay, SlotTime: "10:15",
		Token: "A2", Status: scheduler.StatusSkipped,
	}

	_, err := svc.Recompute(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, appts.thresholdCalls, 1)
	require.Len(t, appts.thresholdCalls[0], 1)
	assert.Equal(t, "a2", appts.thresholdCalls[0][0].AppointmentID)
}

func TestCurrentDelayBeforeSessionStart(t *testing.T) {
	svc, _, _ := newDelayFixture(t)
	svc.now = func() time.Time { return dayAt(8, 30) }

	result, err := svc.CurrentDelay(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DelayMinutes)
	assert.Equal(t, dayAt(9, 0), result.EffectiveStart)
}
