package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 28, hour, minute, 0, 0, time.UTC)
}

func TestBuildSlotGridSingleSession(t *testing.T) {
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "10:00"}}, nil, 15*time.Minute)

	require.Len(t, grid, 4)
	assert.Equal(t, at(9, 0), grid[0].Time)
	assert.Equal(t, at(9, 15), grid[1].Time)
	assert.Equal(t, at(9, 30), grid[2].Time)
	assert.Equal(t, at(9, 45), grid[3].Time)
	for i, slot := range grid {
		assert.Equal(t, i, slot.Index)
		assert.Equal(t, 0, slot.Session)
	}
}

func TestBuildSlotGridExtensionAddsSlots(t *testing.T) {
	sessions := []Session{{Start: "09:00", End: "10:00"}}

	base := BuildSlotGrid(testDate, sessions, nil, 15*time.Minute)
	extended := BuildSlotGrid(testDate, sessions, map[int]string{0: "10:15"}, 15*time.Minute)

	require.Len(t, extended, len(base)+1)
	assert.Equal(t, at(10, 0), extended[len(extended)-1].Time)
}

func TestBuildSlotGridExtensionEarlierThanBaseIgnored(t *testing.T) {
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "10:00"}}, map[int]string{0: "09:30"}, 15*time.Minute)
	assert.Len(t, grid, 4)
}

func TestBuildSlotGridGlobalIndexAcrossSessions(t *testing.T) {
	grid := BuildSlotGrid(testDate, []Session{
		{Start: "09:00", End: "09:30"},
		{Start: "14:00", End: "14:30"},
	}, nil, 15*time.Minute)

	require.Len(t, grid, 4)
	assert.Equal(t, 2, grid[2].Index, "index must not reset per session")
	assert.Equal(t, 1, grid[2].Session)
	assert.Equal(t, at(14, 0), grid[2].Time)
}

func TestBuildSlotGridMalformedSessionFailsClosed(t *testing.T) {
	grid := BuildSlotGrid(testDate, []Session{
		{Start: "nine", End: "10:00"},
		{Start: "14:00", End: "15:00"},
	}, nil, 15*time.Minute)

	require.Len(t, grid, 4, "bad session skipped, good session kept")
	assert.Equal(t, 1, grid[0].Session)
	assert.Equal(t, 0, grid[0].Index)
}

func TestBuildSlotGridHalfOpenEnd(t *testing.T) {
	grid := BuildSlotGrid(testDate, []Session{{Start: "09:00", End: "09:15"}}, nil, 15*time.Minute)
	require.Len(t, grid, 1)
	assert.Equal(t, at(9, 0), grid[0].Time)
}

func TestBuildSlotGridEmptyDay(t *testing.T) {
	assert.Empty(t, BuildSlotGrid(testDate, nil, nil, 15*time.Minute))
}

func TestMergeLeaveSlotsContiguousMarkers(t *testing.T) {
	breaks := MergeLeaveSlots(testDate, []string{"11:15", "11:00", "11:30"}, 15*time.Minute)

	require.Len(t, breaks, 1)
	assert.Equal(t, at(11, 0), breaks[0].Start)
	assert.Equal(t, at(11, 45), breaks[0].End)
}

func TestMergeLeaveSlotsGapSplitsIntervals(t *testing.T) {
	breaks := MergeLeaveSlots(testDate, []string{"11:00", "12:00"}, 15*time.Minute)

	require.Len(t, breaks, 2)
	assert.Equal(t, at(11, 15), breaks[0].End)
	assert.Equal(t, at(12, 0), breaks[1].Start)
}

func TestMergeLeaveSlotsDropsUnparsableMarkers(t *testing.T) {
	breaks := MergeLeaveSlots(testDate, []string{"11:00", "bogus"}, 15*time.Minute)
	require.Len(t, breaks, 1)
	assert.Equal(t, at(11, 0), breaks[0].Start)
}
