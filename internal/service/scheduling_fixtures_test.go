package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
)

// testDay is a Tuesday.
var testDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func dayAt(hour, minute int) time.Time {
	return time.Date(2026, 9, 1, hour, minute, 0, 0, time.UTC)
}

type stubDoctorRepo struct {
	doctor        *models.Doctor
	statusUpdates []scheduler.ConsultationStatus
}

func (s *stubDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if s.doctor == nil {
		return nil, sql.ErrNoRows
	}
	return s.doctor, nil
}

func (s *stubDoctorRepo) UpdateStatus(ctx context.Context, id string, status scheduler.ConsultationStatus, changedAt time.Time) error {
	s.statusUpdates = append(s.statusUpdates, status)
	s.doctor.Status = status
	return nil
}

type stubAvailabilityRepo struct {
	weekly     map[int]models.SessionList
	extensions map[int]string
	leaves     []models.LeaveSlot

	createdExtensions []models.AvailabilityExtension
	createdLeaves     []models.LeaveSlot
	upserted          []models.WeeklyAvailability
}

func (s *stubAvailabilityRepo) GetWeekly(ctx context.Context, doctorID string, dayOfWeek int) (*models.WeeklyAvailability, error) {
	sessions, ok := s.weekly[dayOfWeek]
	if !ok {
		return nil, nil
	}
	return &models.WeeklyAvailability{DoctorID: doctorID, DayOfWeek: dayOfWeek, Sessions: sessions}, nil
}

func (s *stubAvailabilityRepo) ListWeekly(ctx context.Context, doctorID string) ([]models.WeeklyAvailability, error) {
	var rows []models.WeeklyAvailability
	for day, sessions := range s.weekly {
		rows = append(rows, models.WeeklyAvailability{DoctorID: doctorID, DayOfWeek: day, Sessions: sessions})
	}
	return rows, nil
}

func (s *stubAvailabilityRepo) UpsertWeekly(ctx context.Context, avail *models.WeeklyAvailability) error {
	s.upserted = append(s.upserted, *avail)
	return nil
}

func (s *stubAvailabilityRepo) LatestExtensions(ctx context.Context, doctorID string, date time.Time) (map[int]string, error) {
	return s.extensions, nil
}

func (s *stubAvailabilityRepo) CreateExtension(ctx context.Context, ext *models.AvailabilityExtension) error {
	s.createdExtensions = append(s.createdExtensions, *ext)
	return nil
}

func (s *stubAvailabilityRepo) ListLeaveSlots(ctx context.Context, doctorID string, date time.Time) ([]models.LeaveSlot, error) {
	return s.leaves, nil
}

func (s *stubAvailabilityRepo) CreateLeaveSlots(ctx context.Context, slots []models.LeaveSlot) error {
	s.createdLeaves = append(s.createdLeaves, slots...)
	return nil
}

func (s *stubAvailabilityRepo) DeleteLeaveSlot(ctx context.Context, doctorID string, date time.Time, slotTime string) error {
	return nil
}

type stubAppointmentRepo struct {
	appts          map[string]*models.Appointment
	failOnce       map[string]bool
	staleSeq       *int
	thresholdCalls [][]models.ThresholdUpdate
	cancelled      []string
	breakCancelled []string
}

func newStubAppointmentRepo() *stubAppointmentRepo {
	return &stubAppointmentRepo{
		appts:    make(map[string]*models.Appointment),
		failOnce: make(map[string]bool),
	}
}

func (s *stubAppointmentRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	appt, ok := s.appts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return appt, nil
}

func (s *stubAppointmentRepo) Create(ctx context.Context, appt *models.Appointment) error {
	if s.failOnce[appt.SlotTime] {
		delete(s.failOnce, appt.SlotTime)
		taken := *appt
		taken.ID = "race-" + appt.SlotTime
		taken.Token = "X"
		s.appts[taken.ID] = &taken
		return repository.ErrSlotTaken
	}
	// Mirrors the partial unique index on (doctor_id, date, token).
	for _, existing := range s.appts {
		if existing.DoctorID != appt.DoctorID || !sameDate(existing.Date, appt.Date) || existing.Token != appt.Token {
			continue
		}
		switch existing.Status {
		case scheduler.StatusPending, scheduler.StatusConfirmed, scheduler.StatusCompleted:
			return repository.ErrSlotTaken
		}
	}
	if appt.ID == "" {
		appt.ID = "appt-" + strconv.Itoa(len(s.appts)+1)
	}
	stored := *appt
	s.appts[appt.ID] = &stored
	return nil
}

func (s *stubAppointmentRepo) NextTokenSequence(ctx context.Context, doctorID string, date time.Time, prefix string) (int, error) {
	if s.staleSeq != nil {
		seq := *s.staleSeq
		s.staleSeq = nil
		return seq, nil
	}
	max := 0
	for _, appt := range s.appts {
		if !strings.HasPrefix(appt.Token, prefix) {
			continue
		}
		if n, err := strconv.Atoi(appt.Token[1:]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (s *stubAppointmentRepo) BookedSlotTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	var times []string
	for _, appt := range s.appts {
		if !sameDate(appt.Date, date) {
			continue
		}
		switch appt.Status {
		case scheduler.StatusPending, scheduler.StatusConfirmed, scheduler.StatusCompleted:
			times = append(times, appt.SlotTime)
		}
	}
	return times, nil
}

func (s *stubAppointmentRepo) ListByDoctorDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	for _, appt := range s.appts {
		if sameDate(appt.Date, date) {
			appts = append(appts, *appt)
		}
	}
	return appts, nil
}

func (s *stubAppointmentRepo) ListSweepable(ctx context.Context, date time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	for _, appt := range s.appts {
		if appt.Status == scheduler.StatusPending || appt.Status == scheduler.StatusSkipped {
			appts = append(appts, *appt)
		}
	}
	return appts, nil
}

func (s *stubAppointmentRepo) UpdateStatusIf(ctx context.Context, id string, expected, next models.AppointmentStatus) (bool, error) {
	appt, ok := s.appts[id]
	if !ok || appt.Status != expected {
		return false, nil
	}
	appt.Status = next
	return true, nil
}

func (s *stubAppointmentRepo) UpdateThresholdsBatch(ctx context.Context, updates []models.ThresholdUpdate) error {
	s.thresholdCalls = append(s.thresholdCalls, updates)
	for _, update := range updates {
		if appt, ok := s.appts[update.AppointmentID]; ok {
			cutOff := update.CutOffTime
			noShow := update.NoShowTime
			appt.CutOffTime = &cutOff
			appt.NoShowTime = &noShow
			appt.DoctorDelayMinutes = update.DoctorDelayMinutes
		}
	}
	return nil
}

func (s *stubAppointmentRepo) Cancel(ctx context.Context, id string, byBreak bool) error {
	s.cancelled = append(s.cancelled, id)
	if appt, ok := s.appts[id]; ok {
		appt.Status = scheduler.StatusCancelled
		appt.CancelledByBreak = byBreak
	}
	return nil
}

func (s *stubAppointmentRepo) LiveBySlotTimes(ctx context.Context, doctorID string, date time.Time, slotTimes []string) ([]models.Appointment, error) {
	var appts []models.Appointment
	for _, appt := range s.appts {
		switch appt.Status {
		case scheduler.StatusPending, scheduler.StatusConfirmed:
			for _, slotTime := range slotTimes {
				if appt.SlotTime == slotTime {
					appts = append(appts, *appt)
				}
			}
		}
	}
	return appts, nil
}

func (s *stubAppointmentRepo) CancelByBreak(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	s.breakCancelled = append(s.breakCancelled, ids...)
	for _, id := range ids {
		if appt, ok := s.appts[id]; ok {
			appt.Status = scheduler.StatusCancelled
			appt.CancelledByBreak = true
		}
	}
	return nil
}

type stubClaims struct {
	denied map[string]bool
	claims []string
}

func (s *stubClaims) ClaimSlot(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.denied[key] {
		return false, nil
	}
	s.claims = append(s.claims, key)
	return true, nil
}

func (s *stubClaims) ReleaseSlot(ctx context.Context, key string) {}

func testScheduleService(doctor *models.Doctor, avail *stubAvailabilityRepo) *ScheduleService {
	return NewScheduleService(&stubDoctorRepo{doctor: doctor}, avail, 16, nil)
}

func testDoctor() *models.Doctor {
	return &models.Doctor{
		ID:                  "d1",
		ClinicID:            "c1",
		Name:                "Dr. Sari",
		ConsultationMinutes: 15,
		Status:              scheduler.ConsultationOut,
		Active:              true,
	}
}

func everyDay(sessions models.SessionList) map[int]models.SessionList {
	weekly := make(map[int]models.SessionList, 7)
	for day := 0; day < 7; day++ {
		weekly[day] = sessions
	}
	return weekly
}
