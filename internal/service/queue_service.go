package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/jobs"
)

// JobTypeStatusChange labels queue-event jobs handed to the dispatcher.
const JobTypeStatusChange = "queue.status_change"

type queueAppointmentRepository interface {
	ListByDoctorDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error)
	ListSweepable(ctx context.Context, date time.Time) ([]models.Appointment, error)
	UpdateStatusIf(ctx context.Context, id string, expected, next models.AppointmentStatus) (bool, error)
}

type queueCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EventSink receives queue-event jobs for asynchronous publication.
type EventSink interface {
	Enqueue(job jobs.Job) error
}

// QueueEntryView is one row of the live queue as shown on displays.
type QueueEntryView struct {
	Position     int        `json:"position"`
	Token        string     `json:"token"`
	PatientName  string     `json:"patient_name"`
	SlotTime     string     `json:"slot_time"`
	Status       string     `json:"status"`
	CutOffTime   *time.Time `json:"cut_off_time,omitempty"`
	NoShowTime   *time.Time `json:"no_show_time,omitempty"`
	DelayMinutes int        `json:"delay_minutes"`
}

// QueueSnapshot is the ordered queue for one doctor-day.
type QueueSnapshot struct {
	DoctorID    string           `json:"doctor_id"`
	Date        time.Time        `json:"date"`
	Entries     []QueueEntryView `json:"entries"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// QueueService serves ordered queue views and runs the periodic status sweep
// that retires overdue entries. The sweep is level triggered: it acts on the
// persisted thresholds alone, so repeating it is always safe.
type QueueService struct {
	appointments queueAppointmentRepository
	cache        queueCache
	events       EventSink
	metrics      *MetricsService
	cacheTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewQueueService constructs a QueueService. cache and events may be nil.
func NewQueueService(appointments queueAppointmentRepository, cache queueCache, events EventSink, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *QueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	return &QueueService{
		appointments: appointments,
		cache:        cache,
		events:       events,
		metrics:      metrics,
		cacheTTL:     cacheTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// DoctorQueue returns the ordered queue for a doctor-day and whether it was
// served from cache. Snapshots are cached briefly; the sweep invalidates
// them on every transition.
func (s *QueueService) DoctorQueue(ctx context.Context, doctorID string, date time.Time) (*QueueSnapshot, bool, error) {
	cacheKey := queueCacheKey(doctorID, date)
	if s.cache != nil {
		started := time.Now()
		var cached QueueSnapshot
		err := s.cache.Get(ctx, cacheKey, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(started))
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("queue cache read failed", zap.Error(err))
		}
	}

	started := time.Now()
	appts, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	s.metrics.ObserveDBQuery("appointments.list_by_doctor_date", time.Since(started))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue")
	}

	entries := make([]scheduler.QueueEntry, 0, len(appts))
	byID := make(map[string]models.Appointment, len(appts))
	for _, appt := range appts {
		entries = append(entries, appt.QueueEntry())
		byID[appt.ID] = appt
	}
	scheduler.SortQueue(entries)

	snapshot := &QueueSnapshot{
		DoctorID:    doctorID,
		Date:        date,
		Entries:     make([]QueueEntryView, 0, len(entries)),
		GeneratedAt: s.now().UTC(),
	}
	for i, entry := range entries {
		appt := byID[entry.ID]
		snapshot.Entries = append(snapshot.Entries, QueueEntryView{
			Position:     i + 1,
			Token:        appt.Token,
			PatientName:  appt.PatientName,
			SlotTime:     appt.SlotTime,
			Status:       string(appt.Status),
			CutOffTime:   appt.CutOffTime,
			NoShowTime:   appt.NoShowTime,
			DelayMinutes: appt.DoctorDelayMinutes,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("queue cache write failed", zap.Error(err))
		}
	}
	return snapshot, false, nil
}

// SweepDate applies every due status transition for a date. Each transition
// is a conditional write, so concurrent sweeps settle on one winner per
// entry.
func (s *QueueService) SweepDate(ctx context.Context, date time.Time) (int, error) {
	started := time.Now()
	appts, err := s.appointments.ListSweepable(ctx, date)
	s.metrics.ObserveDBQuery("appointments.list_sweepable", time.Since(started))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sweepable appointments")
	}

	now := s.now()
	applied := 0
	touchedDoctors := make(map[string]struct{})

	for _, appt := range appts {
		entry := appt.QueueEntry()
		current := appt.Status
		for {
			entry.Status = current
			next, ok := scheduler.NextStatus(entry, now)
			if !ok {
				break
			}
			won, err := s.appointments.UpdateStatusIf(ctx, appt.ID, current, next)
			if err != nil {
				s.logger.Error("status transition write failed",
					zap.String("appointment_id", appt.ID), zap.Error(err))
				break
			}
			if !won {
				break
			}
			applied++
			touchedDoctors[appt.DoctorID] = struct{}{}
			s.metrics.RecordStatusTransition(next)
			s.publishStatusChange(appt, current, next)
			current = next
		}
	}

	for doctorID := range touchedDoctors {
		s.invalidateQueueCache(ctx, doctorID)
	}
	if applied > 0 {
		s.logger.Info("queue sweep applied transitions",
			zap.String("date", date.Format("2006-01-02")),
			zap.Int("transitions", applied))
	}
	return applied, nil
}

// RunSweeper sweeps today's queues on a fixed interval until ctx ends.
func (s *QueueService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("queue sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("queue sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepDate(ctx, dateOnly(s.now())); err != nil {
				s.logger.Error("queue sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *QueueService) publishStatusChange(appt models.Appointment, from, to models.AppointmentStatus) {
	if s.events == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: JobTypeStatusChange,
		Payload: models.StatusChange{
			AppointmentID: appt.ID,
			DoctorID:      appt.DoctorID,
			ClinicID:      appt.ClinicID,
			Token:         appt.Token,
			OldStatus:     from,
			NewStatus:     to,
		},
	}
	if err := s.events.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue status change event",
			zap.String("appointment_id", appt.ID), zap.Error(err))
	}
}

func (s *QueueService) invalidateQueueCache(ctx context.Context, doctorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("queue:%s:*", doctorID)); err != nil {
		s.logger.Warn("queue cache invalidation failed",
			zap.String("doctor_id", doctorID), zap.Error(err))
	}
}

func queueCacheKey(doctorID string, date time.Time) string {
	return fmt.Sprintf("queue:%s:%s", doctorID, date.Format("2006-01-02"))
}
