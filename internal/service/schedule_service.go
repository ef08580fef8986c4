package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

type scheduleDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type scheduleAvailabilityRepository interface {
	GetWeekly(ctx context.Context, doctorID string, dayOfWeek int) (*models.WeeklyAvailability, error)
	LatestExtensions(ctx context.Context, doctorID string, date time.Time) (map[int]string, error)
	ListLeaveSlots(ctx context.Context, doctorID string, date time.Time) ([]models.LeaveSlot, error)
}

// DaySchedule is the assembled scheduling context for one doctor-day: the
// slot grid, the merged break intervals and the raw leave markers.
type DaySchedule struct {
	Doctor     *models.Doctor
	Date       time.Time
	Sessions   []scheduler.Session
	Extensions map[int]string
	Grid       []scheduler.Slot
	Breaks     []scheduler.BreakInterval
	Leave      scheduler.ClockSet
}

// State projects the schedule plus the current bookings into the capacity
// policy's day snapshot. Slots covered by a break interval count as blocked.
func (d *DaySchedule) State(bookedSlotTimes []string) scheduler.DayState {
	booked := make(scheduler.ClockSet, len(bookedSlotTimes))
	for _, value := range bookedSlotTimes {
		booked[value] = struct{}{}
	}

	blocked := make(scheduler.ClockSet)
	for _, slot := range d.Grid {
		for _, brk := range d.Breaks {
			if brk.Contains(slot.Time) {
				blocked[slot.Clock()] = struct{}{}
				break
			}
		}
	}

	return scheduler.DayState{Booked: booked, Blocked: blocked, Leave: d.Leave}
}

// ScheduleService assembles per-day schedules from weekly availability,
// extensions and leave markers. Built grids are memoised in an LRU keyed by
// their full input fingerprint, so availability edits never serve stale
// grids.
type ScheduleService struct {
	doctors      scheduleDoctorRepository
	availability scheduleAvailabilityRepository
	gridCache    *lru.Cache[string, []scheduler.Slot]
	logger       *zap.Logger
}

// NewScheduleService constructs a ScheduleService. cacheSize <= 0 disables
// grid memoisation.
func NewScheduleService(doctors scheduleDoctorRepository, availability scheduleAvailabilityRepository, cacheSize int, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cache *lru.Cache[string, []scheduler.Slot]
	if cacheSize > 0 {
		cache, _ = lru.New[string, []scheduler.Slot](cacheSize)
	}
	return &ScheduleService{doctors: doctors, availability: availability, gridCache: cache, logger: logger}
}

// ForDay loads and assembles the schedule for a doctor-day. A doctor with no
// availability row for the weekday yields a schedule with an empty grid.
func (s *ScheduleService) ForDay(ctx context.Context, doctorID string, date time.Time) (*DaySchedule, error) {
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "doctor not found")
	}

	weekly, err := s.availability.GetWeekly(ctx, doctorID, int(date.Weekday()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	sched := &DaySchedule{
		Doctor: doctor,
		Date:   date,
		Leave:  scheduler.ClockSet{},
	}
	if weekly == nil {
		return sched, nil
	}
	sched.Sessions = weekly.Sessions

	extensions, err := s.availability.LatestExtensions(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extensions")
	}
	sched.Extensions = extensions

	leaves, err := s.availability.ListLeaveSlots(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave slots")
	}
	markers := make([]string, 0, len(leaves))
	for _, leave := range leaves {
		markers = append(markers, leave.SlotTime)
		sched.Leave[leave.SlotTime] = struct{}{}
	}

	duration := doctor.ConsultationDuration()
	sched.Grid = s.buildGrid(doctorID, date, sched.Sessions, extensions, duration)
	sched.Breaks = scheduler.MergeLeaveSlots(date, markers, duration)

	return sched, nil
}

func (s *ScheduleService) buildGrid(doctorID string, date time.Time, sessions []scheduler.Session, extensions map[int]string, duration time.Duration) []scheduler.Slot {
	if s.gridCache == nil {
		return scheduler.BuildSlotGrid(date, sessions, extensions, duration)
	}

	key := gridCacheKey(doctorID, date, sessions, extensions, duration)
	if grid, ok := s.gridCache.Get(key); ok {
		return grid
	}

	grid := scheduler.BuildSlotGrid(date, sessions, extensions, duration)
	s.gridCache.Add(key, grid)
	return grid
}

// gridCacheKey fingerprints every input that shapes the grid.
func gridCacheKey(doctorID string, date time.Time, sessions []scheduler.Session, extensions map[int]string, duration time.Duration) string {
	var sb strings.Builder
	sb.WriteString(doctorID)
	sb.WriteByte('|')
	sb.WriteString(date.Format("2006-01-02"))
	sb.WriteByte('|')
	sb.WriteString(duration.String())
	sb.WriteByte('|')
	raw, _ := json.Marshal(sessions)
	sb.Write(raw)

	if len(extensions) > 0 {
		indexes := make([]int, 0, len(extensions))
		for idx := range extensions {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			sb.WriteString(fmt.Sprintf("|%d=%s", idx, extensions[idx]))
		}
	}

	return sb.String()
}
