package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

// maxBookingAttempts bounds the claim-retry loop when concurrent bookings
// race for the same slot.
const maxBookingAttempts = 3

type bookingAppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) error
	NextTokenSequence(ctx context.Context, doctorID string, date time.Time, prefix string) (int, error)
	BookedSlotTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error)
	Cancel(ctx context.Context, id string, byBreak bool) error
}

type slotClaimRepository interface {
	ClaimSlot(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseSlot(ctx context.Context, key string)
}

// BookAppointmentRequest creates an advance booking. Date is optional: when
// empty the earliest bookable slot within the look-ahead window is taken.
type BookAppointmentRequest struct {
	DoctorID     string  `json:"doctor_id" validate:"required"`
	Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	PatientID    *string `json:"patient_id"`
	PatientName  string  `json:"patient_name" validate:"required"`
	PatientPhone string  `json:"patient_phone" validate:"required"`
}

// WalkInRequest issues a walk-in token for today.
type WalkInRequest struct {
	DoctorID     string  `json:"doctor_id" validate:"required"`
	PatientID    *string `json:"patient_id"`
	PatientName  string  `json:"patient_name" validate:"required"`
	PatientPhone string  `json:"patient_phone" validate:"required"`
}

// SlotOffer is the result of a next-slot search.
type SlotOffer struct {
	DoctorID string    `json:"doctor_id"`
	Date     time.Time `json:"date"`
	SlotTime string    `json:"slot_time"`
}

// SlotView describes one grid slot for schedule displays.
type SlotView struct {
	SlotTime string `json:"slot_time"`
	Session  int    `json:"session"`
	Booked   bool   `json:"booked"`
	Blocked  bool   `json:"blocked"`
	Reserved bool   `json:"reserved"`
}

// BookingService implements advance booking and walk-in issuance on top of
// the capacity policy. Slot writes are guarded twice: a short-lived Redis
// claim for fast mutual exclusion and the database unique index as the
// final arbiter.
type BookingService struct {
	appointments bookingAppointmentRepository
	schedules    *ScheduleService
	claims       slotClaimRepository
	policy       scheduler.CapacityPolicy
	lookAhead    int
	claimTTL     time.Duration
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(appointments bookingAppointmentRepository, schedules *ScheduleService, claims slotClaimRepository, policy scheduler.CapacityPolicy, lookAheadDays int, claimTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if lookAheadDays <= 0 {
		lookAheadDays = 15
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	return &BookingService{
		appointments: appointments,
		schedules:    schedules,
		claims:       claims,
		policy:       policy,
		lookAhead:    lookAheadDays,
		claimTTL:     claimTTL,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// NextSlot searches the look-ahead window for the earliest advance-bookable
// slot for a doctor.
func (s *BookingService) NextSlot(ctx context.Context, doctorID string) (*SlotOffer, error) {
	now := s.now()
	for offset := 0; offset < s.lookAhead; offset++ {
		date := dateOnly(now.AddDate(0, 0, offset))
		slot, sched, ok, err := s.findAdvanceSlot(ctx, doctorID, date, now)
		if err != nil {
			return nil, err
		}
		if ok {
			return &SlotOffer{DoctorID: sched.Doctor.ID, Date: date, SlotTime: slot.Clock()}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "no bookable slot within the booking window")
}

// DaySlots returns the full grid for a doctor-day with occupancy flags.
func (s *BookingService) DaySlots(ctx context.Context, doctorID string, date time.Time) ([]SlotView, error) {
	sched, err := s.schedules.ForDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.appointments.BookedSlotTimes(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	state := sched.State(booked)

	views := make([]SlotView, 0, len(sched.Grid))
	now := s.now()
	for _, session := range scheduler.SessionSlots(sched.Grid) {
		reserved := s.policy.ReservedSlots(session, state, now)
		for _, slot := range session {
			clock := slot.Clock()
			_, isReserved := reserved[clock]
			views = append(views, SlotView{
				SlotTime: clock,
				Session:  slot.Session,
				Booked:   state.Booked.Has(slot.Time),
				Blocked:  state.Blocked.Has(slot.Time) || state.Leave.Has(slot.Time),
				Reserved: isReserved,
			})
		}
	}
	return views, nil
}

// BookAdvance creates an advance appointment with an A token.
func (s *BookingService) BookAdvance(ctx context.Context, req BookAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	var fixedDate *time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
		}
		fixedDate = &parsed
	}

	var lastErr error
	for attempt := 0; attempt < maxBookingAttempts; attempt++ {
		appt, err := s.tryBookAdvance(ctx, req, fixedDate)
		if err == nil {
			s.metrics.RecordBooking(scheduler.TokenAdvance)
			return appt, nil
		}
		if !isSlotRace(err) {
			return nil, err
		}
		s.metrics.RecordSlotConflict()
		lastErr = err
	}
	s.logger.Warn("booking retries exhausted",
		zap.String("doctor_id", req.DoctorID),
		zap.Error(lastErr))
	return nil, appErrors.Clone(appErrors.ErrConflict, "slot is being booked by another request, please retry")
}

func (s *BookingService) tryBookAdvance(ctx context.Context, req BookAppointmentRequest, fixedDate *time.Time) (*models.Appointment, error) {
	now := s.now()

	var (
		slot  scheduler.Slot
		sched *DaySchedule
		date  time.Time
		found bool
	)
	if fixedDate != nil {
		date = *fixedDate
		var err error
		slot, sched, found, err = s.findAdvanceSlot(ctx, req.DoctorID, date, now)
		if err != nil {
			return nil, err
		}
	} else {
		for offset := 0; offset < s.lookAhead && !found; offset++ {
			date = dateOnly(now.AddDate(0, 0, offset))
			var err error
			slot, sched, found, err = s.findAdvanceSlot(ctx, req.DoctorID, date, now)
			if err != nil {
				return nil, err
			}
		}
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "no bookable slot within the booking window")
	}

	return s.writeAppointment(ctx, sched, date, slot, now, scheduler.TokenAdvance, req.PatientID, req.PatientName, req.PatientPhone)
}

// IssueWalkIn hands out a W token from the reserved tail for today.
func (s *BookingService) IssueWalkIn(ctx context.Context, req WalkInRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid walk-in payload")
	}

	var lastErr error
	for attempt := 0; attempt < maxBookingAttempts; attempt++ {
		now := s.now()
		date := dateOnly(now)

		sched, state, err := s.dayState(ctx, req.DoctorID, date)
		if err != nil {
			return nil, err
		}
		slot, ok := s.policy.NextWalkInSlot(sched.Grid, state, now)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "no walk-in slot available today")
		}

		appt, err := s.writeAppointment(ctx, sched, date, slot, now, scheduler.TokenWalkIn, req.PatientID, req.PatientName, req.PatientPhone)
		if err == nil {
			s.metrics.RecordBooking(scheduler.TokenWalkIn)
			return appt, nil
		}
		if !isSlotRace(err) {
			return nil, err
		}
		s.metrics.RecordSlotConflict()
		lastErr = err
	}
	s.logger.Warn("walk-in retries exhausted",
		zap.String("doctor_id", req.DoctorID),
		zap.Error(lastErr))
	return nil, appErrors.Clone(appErrors.ErrConflict, "slot is being booked by another request, please retry")
}

// Cancel marks a live appointment cancelled on the patient's behalf.
func (s *BookingService) Cancel(ctx context.Context, appointmentID string) error {
	appt, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "appointment not found")
	}
	switch appt.Status {
	case scheduler.StatusPending, scheduler.StatusConfirmed, scheduler.StatusSkipped:
	default:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "appointment can no longer be cancelled")
	}
	if err := s.appointments.Cancel(ctx, appointmentID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}
	return nil
}

func (s *BookingService) findAdvanceSlot(ctx context.Context, doctorID string, date, now time.Time) (scheduler.Slot, *DaySchedule, bool, error) {
	sched, state, err := s.dayState(ctx, doctorID, date)
	if err != nil {
		return scheduler.Slot{}, nil, false, err
	}
	if len(sched.Grid) == 0 {
		return scheduler.Slot{}, sched, false, nil
	}
	slot, ok := s.policy.NextAdvanceSlot(sched.Grid, state, now)
	return slot, sched, ok, nil
}

func (s *BookingService) dayState(ctx context.Context, doctorID string, date time.Time) (*DaySchedule, scheduler.DayState, error) {
	sched, err := s.schedules.ForDay(ctx, doctorID, date)
	if err != nil {
		return nil, scheduler.DayState{}, err
	}
	booked, err := s.appointments.BookedSlotTimes(ctx, doctorID, date)
	if err != nil {
		return nil, scheduler.DayState{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	return sched, sched.State(booked), nil
}

// writeAppointment claims the slot, derives thresholds and persists the row.
func (s *BookingService) writeAppointment(ctx context.Context, sched *DaySchedule, date time.Time, slot scheduler.Slot, now time.Time, tokenType byte, patientID *string, patientName, patientPhone string) (*models.Appointment, error) {
	claimKey := slotClaimKey(sched.Doctor.ClinicID, sched.Doctor.ID, date, slot.Clock())
	claimed, err := s.claims.ClaimSlot(ctx, claimKey, s.claimTTL)
	if err != nil {
		s.logger.Warn("slot claim failed, relying on unique index", zap.Error(err))
	} else if !claimed {
		return nil, repository.ErrSlotTaken
	} else {
		defer s.claims.ReleaseSlot(ctx, claimKey)
	}

	seq, err := s.appointments.NextTokenSequence(ctx, sched.Doctor.ID, date, string(tokenType))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate token")
	}
	token := fmt.Sprintf("%c%d", tokenType, seq)

	// Bookings for different slots of the same doctor-day can read the same
	// counter value. The token claim catches the duplicate mint early; the
	// (doctor_id, date, token) unique index is the final arbiter.
	tokenKey := tokenClaimKey(sched.Doctor.ID, date, token)
	tokenClaimed, claimErr := s.claims.ClaimSlot(ctx, tokenKey, s.claimTTL)
	if claimErr != nil {
		s.logger.Warn("token claim failed, relying on unique index", zap.Error(claimErr))
	} else if !tokenClaimed {
		return nil, repository.ErrSlotTaken
	} else {
		defer s.claims.ReleaseSlot(ctx, tokenKey)
	}

	delayMinutes := 0
	if sameDate(date, now) {
		delayMinutes = scheduler.ComputeDelay(scheduler.DelayInput{
			Status:     sched.Doctor.Status,
			Sessions:   sched.Sessions,
			Extensions: sched.Extensions,
			Date:       date,
			Breaks:     sched.Breaks,
			Now:        now,
		}).DelayMinutes
	}
	thresholds := scheduler.AppointmentThresholds(slot.Time, sched.Breaks, delayMinutes, now)

	appt := &models.Appointment{
		ClinicID:           sched.Doctor.ClinicID,
		DoctorID:           sched.Doctor.ID,
		PatientID:          patientID,
		PatientName:        patientName,
		PatientPhone:       patientPhone,
		Date:               date,
		SlotTime:           slot.Clock(),
		Token:              token,
		Status:             scheduler.StatusPending,
		CutOffTime:         &thresholds.CutOff,
		NoShowTime:         &thresholds.NoShow,
		DoctorDelayMinutes: delayMinutes,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.logger.Info("appointment created",
		zap.String("doctor_id", appt.DoctorID),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("slot_time", appt.SlotTime),
		zap.String("token", appt.Token))
	return appt, nil
}

func isSlotRace(err error) bool {
	return errors.Is(err, repository.ErrSlotTaken)
}

func slotClaimKey(clinicID, doctorID string, date time.Time, slotTime string) string {
	return fmt.Sprintf("slotclaim:%s:%s:%s:%s", clinicID, doctorID, date.Format("2006-01-02"), slotTime)
}

func tokenClaimKey(doctorID string, date time.Time, token string) string {
	return fmt.Sprintf("tokenclaim:%s:%s:%s", doctorID, date.Format("2006-01-02"), token)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
