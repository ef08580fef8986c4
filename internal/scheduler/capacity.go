package scheduler

import (
	"math"
	"time"
)

// DefaultBookingBuffer is the minimum lead time required for same-day
// advance bookings.
const DefaultBookingBuffer = 30 * time.Minute

// DefaultWalkInRatio is the share of remaining future capacity reserved for
// walk-in patients.
const DefaultWalkInRatio = 0.15

// CapacityPolicy implements the advance/walk-in admission split. The reserve
// is recomputed per session and per request against the remaining future
// capacity, so the walk-in tail shrinks proportionally as the day fills.
type CapacityPolicy struct {
	// BookingBuffer applies only when the grid's date is today.
	BookingBuffer time.Duration
	// WalkInRatio is the reserved tail share, rounded up per session.
	WalkInRatio float64
}

// DayState is the booked/blocked snapshot for a (doctor, date), keyed by
// wall-clock slot time.
type DayState struct {
	// Booked holds advance-booked slot times with status in
	// {PENDING, CONFIRMED, COMPLETED}.
	Booked ClockSet
	// Blocked holds slot times covered by break intervals, including slots
	// cancelled by a break after completion.
	Blocked ClockSet
	// Leave holds explicit leave-slot markers.
	Leave ClockSet
}

func (p CapacityPolicy) buffer() time.Duration {
	if p.BookingBuffer <= 0 {
		return DefaultBookingBuffer
	}
	return p.BookingBuffer
}

func (p CapacityPolicy) ratio() float64 {
	if p.WalkInRatio <= 0 || p.WalkInRatio >= 1 {
		return DefaultWalkInRatio
	}
	return p.WalkInRatio
}

// inFuture applies the temporal eligibility rule: slots on future dates only
// need to be at or after now, same-day slots must clear the booking buffer.
func (p CapacityPolicy) inFuture(slot Slot, now time.Time) bool {
	if sameDay(slot.Time, now) {
		return slot.Time.After(now.Add(p.buffer()))
	}
	return !slot.Time.Before(now)
}

// futureValid returns the session slots forming the capacity denominator:
// not in the past (per the today-buffer rule) and not blocked by leave or
// break.
func (p CapacityPolicy) futureValid(session []Slot, state DayState, now time.Time) []Slot {
	valid := make([]Slot, 0, len(session))
	for _, slot := range session {
		if !p.inFuture(slot, now) {
			continue
		}
		if state.Leave.Has(slot.Time) || state.Blocked.Has(slot.Time) {
			continue
		}
		valid = append(valid, slot)
	}
	return valid
}

// reservedTail returns the walk-in-reserved subset of the future-valid
// sequence: the trailing ceil(n * ratio) slots by future-valid position.
func (p CapacityPolicy) reservedTail(futureValid []Slot) ClockSet {
	n := len(futureValid)
	if n == 0 {
		return nil
	}
	reserve := int(math.Ceil(float64(n) * p.ratio()))
	reserved := make(ClockSet, reserve)
	for _, slot := range futureValid[n-reserve:] {
		reserved[slot.Clock()] = struct{}{}
	}
	return reserved
}

// ReservedSlots exposes the current walk-in reserve of one session for
// schedule displays, keyed by wall-clock slot time.
func (p CapacityPolicy) ReservedSlots(session []Slot, state DayState, now time.Time) ClockSet {
	return p.reservedTail(p.futureValid(session, state, now))
}

// NextAdvanceSlot finds the first slot eligible for a new advance booking.
// Sessions are scanned in declared order and the first session producing a
// candidate wins. The boolean is false when the whole day has no candidate,
// which is a normal outcome rather than an error.
func (p CapacityPolicy) NextAdvanceSlot(grid []Slot, state DayState, now time.Time) (Slot, bool) {
	for _, session := range SessionSlots(grid) {
		reserved := p.reservedTail(p.futureValid(session, state, now))
		for _, slot := range session {
			if !p.inFuture(slot, now) {
				continue
			}
			if state.Leave.Has(slot.Time) || state.Blocked.Has(slot.Time) {
				continue
			}
			if state.Booked.Has(slot.Time) {
				continue
			}
			if _, ok := reserved[slot.Clock()]; ok {
				continue
			}
			return slot, true
		}
	}
	return Slot{}, false
}

// NextWalkInSlot draws from the reserved tail for a patient physically
// present: the first unbooked reserved slot wins. The booking buffer does
// not apply; a walk-in only needs the slot to still be in the future.
func (p CapacityPolicy) NextWalkInSlot(grid []Slot, state DayState, now time.Time) (Slot, bool) {
	for _, session := range SessionSlots(grid) {
		reserved := p.reservedTail(p.futureValid(session, state, now))
		for _, slot := range session {
			if slot.Time.Before(now) {
				continue
			}
			if state.Leave.Has(slot.Time) || state.Blocked.Has(slot.Time) {
				continue
			}
			if state.Booked.Has(slot.Time) {
				continue
			}
			if _, ok := reserved[slot.Clock()]; !ok {
				continue
			}
			return slot, true
		}
	}
	return Slot{}, false
}
