package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockSet(values ...string) ClockSet {
	set := make(ClockSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func TestReservedTailBoundaries(t *testing.T) {
	policy := CapacityPolicy{}

	// 20 future-valid slots reserve ceil(20*0.15) = 3; 6 reserve 1.
	cases := []struct {
		slots    int
		reserved int
	}{
		{20, 3},
		{6, 1},
		{1, 1},
		{0, 0},
	}
	for _, tc := range cases {
		slots := make([]Slot, tc.slots)
		for i := range slots {
			slots[i] = Slot{Index: i, Time: at(9, 0).Add(time.Duration(i) * 15 * time.Minute)}
		}
		assert.Len(t, policy.reservedTail(slots), tc.reserved, "slots=%d", tc.slots)
	}
}

func TestNextAdvanceSlotSkipsReservedTail(t *testing.T) {
	policy := CapacityPolicy{}
	// 4 future slots: ceil(4*0.15) = 1 reserved, the last one.
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "10:00"}}, nil, 15*time.Minute)
	state := DayState{Booked: clockSet("09:00", "09:15", "09:30")}
	now := at(7, 0).AddDate(0, 0, -1) // previous day, buffer does not apply

	_, ok := policy.NextAdvanceSlot(grid, state, now)
	assert.False(t, ok, "only remaining slot is walk-in-reserved")

	slot, ok := policy.NextWalkInSlot(grid, state, at(7, 0))
	require.True(t, ok)
	assert.Equal(t, "09:45", slot.Clock())
}

func TestNextAdvanceSlotTodayBuffer(t *testing.T) {
	policy := CapacityPolicy{BookingBuffer: 30 * time.Minute}
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:20", End: "11:00"}}, nil, 11*time.Minute)
	now := at(9, 0)

	slot, ok := policy.NextAdvanceSlot(grid, DayState{}, now)
	require.True(t, ok)
	// 09:20 is within the 30-minute buffer; 09:31 is the first clear slot.
	assert.Equal(t, "09:31", slot.Clock())
}

func TestNextAdvanceSlotFutureDateIgnoresBuffer(t *testing.T) {
	policy := CapacityPolicy{BookingBuffer: 30 * time.Minute}
	grid := BuildSlotGrid(testDate.AddDate(0, 0, 1), []Session{{Start: "09:00", End: "10:00"}}, nil, 15*time.Minute)

	slot, ok := policy.NextAdvanceSlot(grid, DayState{}, at(23, 50))
	require.True(t, ok)
	assert.Equal(t, "09:00", slot.Clock())
}

func TestNextAdvanceSlotSkipsBlockedAndBooked(t *testing.T) {
	policy := CapacityPolicy{}
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "11:00"}}, nil, 15*time.Minute)
	state := DayState{
		Booked:  clockSet("09:00"),
		Blocked: clockSet("09:15"),
		Leave:   clockSet("09:30"),
	}

	slot, ok := policy.NextAdvanceSlot(grid, state, at(0, 0))
	require.True(t, ok)
	assert.Equal(t, "09:45", slot.Clock())
}

func TestNextAdvanceSlotFirstSessionWins(t *testing.T) {
	policy := CapacityPolicy{}
	grid := BuildSlotGrid(testDate, []Session{
		{Start: "09:00", End: "10:00"},
		{Start: "14:00", End: "15:00"},
	}, nil, 15*time.Minute)

	slot, ok := policy.NextAdvanceSlot(grid, DayState{}, at(0, 0))
	require.True(t, ok)
	assert.Equal(t, 0, slot.Session)
	assert.Equal(t, "09:00", slot.Clock())
}

func TestNextAdvanceSlotFallsThroughToLaterSession(t *testing.T) {
	policy := CapacityPolicy{}
	grid := BuildSlotGrid(testDate, []Session{
		{Start: "09:00", End: "09:30"},
		{Start: "14:00", End: "15:00"},
	}, nil, 15*time.Minute)
	state := DayState{Booked: clockSet("09:00", "09:15")}

	slot, ok := policy.NextAdvanceSlot(grid, state, at(0, 0))
	require.True(t, ok)
	assert.Equal(t, 1, slot.Session)
	assert.Equal(t, "14:00", slot.Clock())
}

func TestReserveShrinksWithRemainingCapacity(t *testing.T) {
	policy := CapacityPolicy{}
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "14:00"}}, nil, 15*time.Minute)

	// Morning: 20 future slots, 3 reserved.
	morning := policy.futureValid(SessionSlots(grid)[0], DayState{}, at(8, 0).AddDate(0, 0, -1))
	require.Len(t, morning, 20)
	assert.Len(t, policy.reservedTail(morning), 3)

	// Midday the denominator has shrunk and so has the reserve.
	midday := policy.futureValid(SessionSlots(grid)[0], DayState{}, at(12, 25))
	require.Len(t, midday, 4)
	assert.Len(t, policy.reservedTail(midday), 1)
}

func TestNextWalkInSlotNoneWhenTailBooked(t *testing.T) {
	policy := CapacityPolicy{}
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "10:00"}}, nil, 15*time.Minute)
	state := DayState{Booked: clockSet("09:45")}

	_, ok := policy.NextWalkInSlot(grid, state, at(7, 0))
	assert.False(t, ok)
}
