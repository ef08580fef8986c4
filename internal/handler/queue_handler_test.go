package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	"github.com/noah-isme/clinic-queue-api/internal/service"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type fakeQueueRepo struct {
	appts    []models.Appointment
	lastDate time.Time
}

func (f *fakeQueueRepo) ListByDoctorDate(_ context.Context, _ string, date time.Time) ([]models.Appointment, error) {
	f.lastDate = date
	return f.appts, nil
}

func (f *fakeQueueRepo) ListSweepable(context.Context, time.Time) ([]models.Appointment, error) {
	return f.appts, nil
}

func (f *fakeQueueRepo) UpdateStatusIf(ctx context.Context, id string, expected, next models.AppointmentStatus) (bool, error) {
	for i := range f.appts {
		if f.appts[i].ID == id && f.appts[i].Status == expected {
			f.appts[i].Status = next
			return true, nil
		}
	}
	return false, nil
}

func queueTestContext(t *testing.T, target string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Params = gin.Params{{Key: "id", Value: "d1"}}
	return rec, c
}

func TestQueueHandlerDoctorQueueOrdersEntries(t *testing.T) {
	slot := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := &fakeQueueRepo{appts: []models.Appointment{
		{ID: "a2", DoctorID: "d1", PatientName: "Wati", Date: slot, SlotTime: "09:00", Token: "W1", Status: scheduler.StatusPending},
		{ID: "a1", DoctorID: "d1", PatientName: "Budi", Date: slot, SlotTime: "09:00", Token: "A1", Status: scheduler.StatusPending},
	}}
	handler := NewQueueHandler(service.NewQueueService(repo, nil, nil, nil, 0, nil))

	rec, c := queueTestContext(t, "/doctors/d1/queue?date=2026-09-01")
	handler.DoctorQueue(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var snapshot service.QueueSnapshot
	require.NoError(t, json.Unmarshal(envelope.Data, &snapshot))
	require.Len(t, snapshot.Entries, 2)
	assert.Equal(t, "A1", snapshot.Entries[0].Token)
	assert.Equal(t, "W1", snapshot.Entries[1].Token)
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestQueueHandlerDoctorQueueDefaultsToToday(t *testing.T) {
	repo := &fakeQueueRepo{}
	handler := NewQueueHandler(service.NewQueueService(repo, nil, nil, nil, 0, nil))

	rec, c := queueTestContext(t, "/doctors/d1/queue")
	handler.DoctorQueue(c)

	require.Equal(t, http.StatusOK, rec.Code)
	// The default date is today's local midnight, matching the convention
	// the booking and delay services use.
	now := time.Now()
	want := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	assert.Equal(t, want, repo.lastDate)
}

func TestQueueHandlerDoctorQueueRejectsBadDate(t *testing.T) {
	handler := NewQueueHandler(service.NewQueueService(&fakeQueueRepo{}, nil, nil, nil, 0, nil))

	rec, c := queueTestContext(t, "/doctors/d1/queue?date=99-99-9999")
	handler.DoctorQueue(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueHandlerSweepRequiresDate(t *testing.T) {
	handler := NewQueueHandler(service.NewQueueService(&fakeQueueRepo{}, nil, nil, nil, 0, nil))

	rec, c := queueTestContext(t, "/queue/sweep")
	c.Request = httptest.NewRequest(http.MethodPost, "/queue/sweep", nil)
	handler.Sweep(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueHandlerSweepReportsTransitions(t *testing.T) {
	slot := time.Date(2023, 9, 1, 9, 0, 0, 0, time.UTC)
	cutOff := slot.Add(-15 * time.Minute)
	noShow := time.Now().UTC().Add(time.Hour)
	repo := &fakeQueueRepo{appts: []models.Appointment{
		{ID: "a1", DoctorID: "d1", Date: slot, SlotTime: "09:00", Token: "A1",
			Status: scheduler.StatusPending, CutOffTime: &cutOff, NoShowTime: &noShow},
	}}
	handler := NewQueueHandler(service.NewQueueService(repo, nil, nil, nil, 0, nil))

	rec, c := queueTestContext(t, "/queue/sweep?date=2023-09-01")
	c.Request = httptest.NewRequest(http.MethodPost, "/queue/sweep?date=2023-09-01", nil)
	handler.Sweep(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var body map[string]int
	require.NoError(t, json.Unmarshal(envelope.Data, &body))
	assert.Equal(t, 1, body["transitions"])
	assert.Equal(t, scheduler.StatusSkipped, repo.appts[0].Status)
}
