package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/jobs"
)

type stubEventQueue struct {
	jobs []jobs.Job
}

func (s *stubEventQueue) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

type stubQueueCache struct {
	store           map[string][]byte
	deletedPatterns []string
}

func newStubQueueCache() *stubQueueCache {
	return &stubQueueCache{store: make(map[string][]byte)}
}

func (s *stubQueueCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubQueueCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	return nil
}

func (s *stubQueueCache) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletedPatterns = append(s.deletedPatterns, pattern)
	s.store = make(map[string][]byte)
	return nil
}

func pendingAppt(id, slotTime, token string, cutOff, noShow time.Time) *models.Appointment {
	return &models.Appointment{
		ID:          id,
		ClinicID:    "c1",
		DoctorID:    "d1",
		PatientName: "Pasien " + token,
		Date:        testDay,
		SlotTime:    slotTime,
		Token:       token,
		Status:      scheduler.StatusPending,
		CutOffTime:  &cutOff,
		NoShowTime:  &noShow,
	}
}

func TestDoctorQueueOrdering(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a2"] = pendingAppt("a2", "09:15", "A2", dayAt(9, 0), dayAt(9, 30))
	appts.appts["w1"] = pendingAppt("w1", "09:45", "W1", dayAt(9, 30), dayAt(10, 0))
	appts.appts["a1"] = pendingAppt("a1", "09:00", "A1", dayAt(8, 45), dayAt(9, 15))

	svc := NewQueueService(appts, nil, nil, nil, 0, nil)
	snapshot, cached, err := svc.DoctorQueue(context.Background(), "d1", testDay)
	require.NoError(t, err)
	assert.False(t, cached)

	require.Len(t, snapshot.Entries, 3)
	tokens := []string{snapshot.Entries[0].Token, snapshot.Entries[1].Token, snapshot.Entries[2].Token}
	assert.Equal(t, []string{"A1", "A2", "W1"}, tokens)
	assert.Equal(t, 1, snapshot.Entries[0].Position)
	assert.Equal(t, 3, snapshot.Entries[2].Position)
}

func TestDoctorQueueServesCachedSnapshot(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a1"] = pendingAppt("a1", "09:00", "A1", dayAt(8, 45), dayAt(9, 15))
	cache := newStubQueueCache()

	svc := NewQueueService(appts, cache, nil, nil, 15*time.Second, nil)
	first, cached, err := svc.DoctorQueue(context.Background(), "d1", testDay)
	require.NoError(t, err)
	assert.False(t, cached)

	// A booking landing between reads is invisible until the TTL or an
	// invalidation clears the snapshot.
	appts.appts["a2"] = pendingAppt("a2", "09:15", "A2", dayAt(9, 0), dayAt(9, 30))
	second, cached, err := svc.DoctorQueue(context.Background(), "d1", testDay)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, len(first.Entries), len(second.Entries))
}

func TestSweepDateSkipsOverdueCutOff(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a1"] = pendingAppt("a1", "10:00", "A1", dayAt(9, 45), dayAt(10, 15))
	events := &stubEventQueue{}

	svc := NewQueueService(appts, nil, events, nil, 0, nil)
	svc.now = func() time.Time { return dayAt(10, 0) }

	applied, err := svc.SweepDate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, scheduler.StatusSkipped, appts.appts["a1"].Status)

	require.Len(t, events.jobs, 1)
	assert.Equal(t, JobTypeStatusChange, events.jobs[0].Type)
	change, ok := events.jobs[0].Payload.(models.StatusChange)
	require.True(t, ok)
	assert.Equal(t, scheduler.StatusPending, change.OldStatus)
	assert.Equal(t, scheduler.StatusSkipped, change.NewStatus)
}

func TestSweepDateChainsToNoShow(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a1"] = pendingAppt("a1", "10:00", "A1", dayAt(9, 45), dayAt(10, 15))
	events := &stubEventQueue{}

	svc := NewQueueService(appts, nil, events, nil, 0, nil)
	svc.now = func() time.Time { return dayAt(10, 30) }

	applied, err := svc.SweepDate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, scheduler.StatusNoShow, appts.appts["a1"].Status)
	require.Len(t, events.jobs, 2)
}

func TestSweepDateIsIdempotent(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a1"] = pendingAppt("a1", "10:00", "A1", dayAt(9, 45), dayAt(10, 15))

	svc := NewQueueService(appts, nil, nil, nil, 0, nil)
	svc.now = func() time.Time { return dayAt(10, 30) }

	applied, err := svc.SweepDate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = svc.SweepDate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestSweepDateInvalidatesQueueCache(t *testing.T) {
	appts := newStubAppointmentRepo()
	appts.appts["a1"] = pendingAppt("a1", "10:00", "A1", dayAt(9, 45), dayAt(10, 15))
	cache := newStubQueueCache()

	svc := NewQueueService(appts, cache, nil, nil, 15*time.Second, nil)
	svc.now = func() time.Time { return dayAt(10, 0) }

	_, _, err := svc.DoctorQueue(context.Background(), "d1", testDay)
	require.NoError(t, err)
	require.NotEmpty(t, cache.store)

	_, err = svc.SweepDate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"queue:d1:*"}, cache.deletedPatterns)
	assert.Empty(t, cache.store)
}
