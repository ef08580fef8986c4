package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

type availabilityRepository interface {
	GetWeekly(ctx context.Context, doctorID string, dayOfWeek int) (*models.WeeklyAvailability, error)
	ListWeekly(ctx context.Context, doctorID string) ([]models.WeeklyAvailability, error)
	UpsertWeekly(ctx context.Context, avail *models.WeeklyAvailability) error
	LatestExtensions(ctx context.Context, doctorID string, date time.Time) (map[int]string, error)
	CreateExtension(ctx context.Context, ext *models.AvailabilityExtension) error
	ListLeaveSlots(ctx context.Context, doctorID string, date time.Time) ([]models.LeaveSlot, error)
	CreateLeaveSlots(ctx context.Context, slots []models.LeaveSlot) error
	DeleteLeaveSlot(ctx context.Context, doctorID string, date time.Time, slotTime string) error
}

type availabilityAppointmentRepository interface {
	LiveBySlotTimes(ctx context.Context, doctorID string, date time.Time, slotTimes []string) ([]models.Appointment, error)
	CancelByBreak(ctx context.Context, exec sqlx.ExtContext, ids []string) error
}

// UpsertAvailabilityRequest replaces a doctor's session plan for one weekday.
type UpsertAvailabilityRequest struct {
	DoctorID  string              `json:"doctor_id" validate:"required"`
	DayOfWeek int                 `json:"day_of_week" validate:"min=0,max=6"`
	Sessions  []scheduler.Session `json:"sessions" validate:"required,min=1,dive"`
}

// ExtendSessionRequest extends one session's end on a specific date.
type ExtendSessionRequest struct {
	DoctorID     string `json:"doctor_id" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	SessionIndex int    `json:"session_index" validate:"min=0"`
	ExtendedEnd  string `json:"extended_end" validate:"required"`
}

// MarkLeaveRequest marks one or more slots as leave on a date.
type MarkLeaveRequest struct {
	DoctorID  string   `json:"doctor_id" validate:"required"`
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	SlotTimes []string `json:"slot_times" validate:"required,min=1"`
	Reason    string   `json:"reason"`
}

// AvailabilityService manages weekly session plans, per-date extensions and
// leave markers. Marking leave cancels the live bookings the break swallows.
type AvailabilityService struct {
	repo         availabilityRepository
	appointments availabilityAppointmentRepository
	schedules    *ScheduleService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, appointments availabilityAppointmentRepository, schedules *ScheduleService, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{repo: repo, appointments: appointments, schedules: schedules, validator: validate, logger: logger}
}

// GetWeeklyPlan returns all weekday session plans for a doctor.
func (s *AvailabilityService) GetWeeklyPlan(ctx context.Context, doctorID string) ([]models.WeeklyAvailability, error) {
	rows, err := s.repo.ListWeekly(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly plan")
	}
	return rows, nil
}

// UpsertWeeklyPlan validates and stores one weekday's sessions.
func (s *AvailabilityService) UpsertWeeklyPlan(ctx context.Context, req UpsertAvailabilityRequest) (*models.WeeklyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := validateSessions(req.Sessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	avail := &models.WeeklyAvailability{
		DoctorID:  req.DoctorID,
		DayOfWeek: req.DayOfWeek,
		Sessions:  models.SessionList(req.Sessions),
	}
	if err := s.repo.UpsertWeekly(ctx, avail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store weekly plan")
	}
	return avail, nil
}

// ExtendSession records a same-day session extension. The new end must lie
// beyond the session's current effective end, so extensions only ever add
// slots.
func (s *AvailabilityService) ExtendSession(ctx context.Context, req ExtendSessionRequest) (*models.AvailabilityExtension, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	sched, err := s.schedules.ForDay(ctx, req.DoctorID, date)
	if err != nil {
		return nil, err
	}
	if req.SessionIndex >= len(sched.Sessions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session index out of range")
	}

	newEnd, err := time.Parse(scheduler.Clock, req.ExtendedEnd)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid extended end time")
	}
	currentEnd := sched.Sessions[req.SessionIndex].End
	if prior, ok := sched.Extensions[req.SessionIndex]; ok {
		currentEnd = prior
	}
	parsedCurrent, err := time.Parse(scheduler.Clock, currentEnd)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stored session end is malformed")
	}
	if !newEnd.After(parsedCurrent) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "extension must end after the current session end")
	}

	ext := &models.AvailabilityExtension{
		DoctorID:     req.DoctorID,
		Date:         date,
		SessionIndex: req.SessionIndex,
		ExtendedEnd:  req.ExtendedEnd,
	}
	if err := s.repo.CreateExtension(ctx, ext); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store extension")
	}
	return ext, nil
}

// MarkLeave stores leave markers for the given slots and cancels the live
// bookings they overlap, flagging those as break-cancelled.
func (s *AvailabilityService) MarkLeave(ctx context.Context, req MarkLeaveRequest) ([]models.LeaveSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	for _, slotTime := range req.SlotTimes {
		if _, err := time.Parse(scheduler.Clock, slotTime); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid slot time %q", slotTime))
		}
	}

	slots := make([]models.LeaveSlot, 0, len(req.SlotTimes))
	for _, slotTime := range req.SlotTimes {
		slots = append(slots, models.LeaveSlot{
			DoctorID: req.DoctorID,
			Date:     date,
			SlotTime: slotTime,
			Reason:   req.Reason,
		})
	}
	if err := s.repo.CreateLeaveSlots(ctx, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store leave slots")
	}

	live, err := s.appointments.LiveBySlotTimes(ctx, req.DoctorID, date, req.SlotTimes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overlapping bookings")
	}
	if len(live) > 0 {
		ids := make([]string, 0, len(live))
		for _, appt := range live {
			ids = append(ids, appt.ID)
		}
		if err := s.appointments.CancelByBreak(ctx, nil, ids); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel overlapping bookings")
		}
		s.logger.Info("cancelled bookings overlapped by leave",
			zap.String("doctor_id", req.DoctorID),
			zap.String("date", req.Date),
			zap.Int("count", len(ids)))
	}

	return slots, nil
}

// RemoveLeave deletes one leave marker.
func (s *AvailabilityService) RemoveLeave(ctx context.Context, doctorID, dateValue, slotTime string) error {
	date, err := time.Parse("2006-01-02", dateValue)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if err := s.repo.DeleteLeaveSlot(ctx, doctorID, date, slotTime); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave slot")
	}
	return nil
}

// validateSessions enforces parseable, ordered, non-overlapping sessions.
func validateSessions(sessions []scheduler.Session) error {
	var prevEnd time.Time
	for i, session := range sessions {
		start, err := time.Parse(scheduler.Clock, session.Start)
		if err != nil {
			return fmt.Errorf("session %d has invalid start %q", i, session.Start)
		}
		end, err := time.Parse(scheduler.Clock, session.End)
		if err != nil {
			return fmt.Errorf("session %d has invalid end %q", i, session.End)
		}
		if !end.After(start) {
			return fmt.Errorf("session %d must end after it starts", i)
		}
		if i > 0 && start.Before(prevEnd) {
			return fmt.Errorf("session %d overlaps the previous session", i)
		}
		prevEnd = end
	}
	return nil
}
