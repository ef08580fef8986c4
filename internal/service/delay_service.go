package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

type delayDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	UpdateStatus(ctx context.Context, id string, status scheduler.ConsultationStatus, changedAt time.Time) error
}

type delayAppointmentRepository interface {
	ListByDoctorDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error)
	UpdateThresholdsBatch(ctx context.Context, updates []models.ThresholdUpdate) error
}

// DelayService measures doctor lateness and propagates it into the persisted
// appointment thresholds. Every consultation-status change triggers a full
// recomputation for the doctor's remaining queue of the day.
type DelayService struct {
	doctors      delayDoctorRepository
	appointments delayAppointmentRepository
	schedules    *ScheduleService
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// NewDelayService constructs a DelayService.
func NewDelayService(doctors delayDoctorRepository, appointments delayAppointmentRepository, schedules *ScheduleService, metrics *MetricsService, logger *zap.Logger) *DelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DelayService{
		doctors:      doctors,
		appointments: appointments,
		schedules:    schedules,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// UpdateDoctorStatus records a consultation-status change and recomputes the
// day's thresholds under the new status.
func (s *DelayService) UpdateDoctorStatus(ctx context.Context, doctorID string, status scheduler.ConsultationStatus) (*scheduler.DelayResult, error) {
	switch status {
	case scheduler.ConsultationOut, scheduler.ConsultationIn, scheduler.ConsultationBreak, scheduler.ConsultationDone:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown consultation status")
	}

	if _, err := s.doctors.FindByID(ctx, doctorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "doctor not found")
	}
	if err := s.doctors.UpdateStatus(ctx, doctorID, status, s.now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor status")
	}

	return s.Recompute(ctx, doctorID)
}

// CurrentDelay measures the doctor's lateness right now without writing
// anything.
func (s *DelayService) CurrentDelay(ctx context.Context, doctorID string) (*scheduler.DelayResult, error) {
	now := s.now()
	sched, err := s.schedules.ForDay(ctx, doctorID, dateOnly(now))
	if err != nil {
		return nil, err
	}
	result := s.computeDelay(sched, now)
	return &result, nil
}

// Recompute measures the current delay and rewrites the thresholds of every
// non-terminal appointment for today in one batch.
func (s *DelayService) Recompute(ctx context.Context, doctorID string) (*scheduler.DelayResult, error) {
	now := s.now()
	date := dateOnly(now)

	sched, err := s.schedules.ForDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	result := s.computeDelay(sched, now)

	appts, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}

	updates := make([]models.ThresholdUpdate, 0, len(appts))
	for _, appt := range appts {
		switch appt.Status {
		case scheduler.StatusPending, scheduler.StatusConfirmed, scheduler.StatusSkipped:
		default:
			continue
		}
		slotTime := appt.SlotDateTime()
		if slotTime.IsZero() {
			s.logger.Warn("skipping appointment with malformed slot time",
				zap.String("appointment_id", appt.ID),
				zap.String("slot_time", appt.SlotTime))
			continue
		}
		thresholds := scheduler.AppointmentThresholds(slotTime, sched.Breaks, result.DelayMinutes, now)
		updates = append(updates, models.ThresholdUpdate{
			AppointmentID:      appt.ID,
			CutOffTime:         thresholds.CutOff,
			NoShowTime:         thresholds.NoShow,
			DoctorDelayMinutes: result.DelayMinutes,
		})
	}

	started := time.Now()
	if err := s.appointments.UpdateThresholdsBatch(ctx, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store thresholds")
	}
	s.metrics.ObserveDBQuery("appointments.update_thresholds_batch", time.Since(started))

	s.metrics.SetDoctorDelay(doctorID, result.DelayMinutes)
	s.logger.Info("delay propagated",
		zap.String("doctor_id", doctorID),
		zap.Int("delay_minutes", result.DelayMinutes),
		zap.Int("appointments", len(updates)))

	return &result, nil
}

func (s *DelayService) computeDelay(sched *DaySchedule, now time.Time) scheduler.DelayResult {
	return scheduler.ComputeDelay(scheduler.DelayInput{
		Status:     sched.Doctor.Status,
		Sessions:   sched.Sessions,
		Extensions: sched.Extensions,
		Date:       sched.Date,
		Breaks:     sched.Breaks,
		Now:        now,
	})
}
