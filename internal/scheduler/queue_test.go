package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, token string, slot time.Time, status Status) QueueEntry {
	return QueueEntry{ID: id, Date: testDate, SlotTime: slot, Token: token, Status: status}
}

func TestSortQueueAdvanceBeforeWalkInAtSameTime(t *testing.T) {
	entries := []QueueEntry{
		entry("3", "A2", at(9, 15), StatusPending),
		entry("2", "W1", at(9, 0), StatusPending),
		entry("1", "A1", at(9, 0), StatusPending),
	}

	SortQueue(entries)

	require.Len(t, entries, 3)
	assert.Equal(t, "A1", entries[0].Token)
	assert.Equal(t, "W1", entries[1].Token)
	assert.Equal(t, "A2", entries[2].Token)
}

func TestSortQueueDatePrecedesTime(t *testing.T) {
	tomorrow := entry("1", "A1", at(8, 0).AddDate(0, 0, 1), StatusPending)
	tomorrow.Date = testDate.AddDate(0, 0, 1)
	today := entry("2", "A9", at(17, 0), StatusPending)

	entries := []QueueEntry{tomorrow, today}
	SortQueue(entries)

	assert.Equal(t, "A9", entries[0].Token)
}

func TestSortQueueNumericTokenOrder(t *testing.T) {
	entries := []QueueEntry{
		entry("1", "A10", at(9, 0), StatusPending),
		entry("2", "A2", at(9, 0), StatusPending),
	}

	SortQueue(entries)

	assert.Equal(t, "A2", entries[0].Token, "numeric compare, not lexicographic")
}

func TestNextStatusPendingToSkipped(t *testing.T) {
	cutOff := at(9, 45)
	e := entry("1", "A1", at(10, 0), StatusPending)
	e.CutOff = &cutOff

	status, changed := NextStatus(e, at(9, 45))
	assert.True(t, changed)
	assert.Equal(t, StatusSkipped, status)

	status, changed = NextStatus(e, at(9, 44))
	assert.False(t, changed)
	assert.Equal(t, StatusPending, status)
}

func TestNextStatusSkippedToNoShow(t *testing.T) {
	noShow := at(10, 15)
	e := entry("1", "A1", at(10, 0), StatusSkipped)
	e.NoShow = &noShow

	status, changed := NextStatus(e, at(10, 20))
	assert.True(t, changed)
	assert.Equal(t, StatusNoShow, status)
}

func TestNextStatusIdempotentAfterTransition(t *testing.T) {
	cutOff := at(9, 45)
	e := entry("1", "A1", at(10, 0), StatusPending)
	e.CutOff = &cutOff

	status, changed := NextStatus(e, at(9, 50))
	require.True(t, changed)
	e.Status = status

	// Second sweep after the transition already fired: no re-fire.
	_, changed = NextStatus(e, at(9, 50))
	assert.False(t, changed)
}

func TestNextStatusLegacyFallbackThresholds(t *testing.T) {
	e := entry("1", "A1", at(10, 0), StatusPending)

	status, changed := NextStatus(e, at(9, 45))
	assert.True(t, changed, "fallback cutoff is slot-15m")
	assert.Equal(t, StatusSkipped, status)

	e.Status = StatusSkipped
	status, changed = NextStatus(e, at(10, 15))
	assert.True(t, changed, "fallback no-show is slot+15m")
	assert.Equal(t, StatusNoShow, status)
}

func TestNextStatusTerminalStatesUntouched(t *testing.T) {
	for _, status := range []Status{StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow} {
		e := entry("1", "A1", at(10, 0), status)
		next, changed := NextStatus(e, at(23, 0))
		assert.False(t, changed, string(status))
		assert.Equal(t, status, next)
	}
}

func TestTokenParts(t *testing.T) {
	kind, seq := TokenParts("A12")
	assert.Equal(t, byte(TokenAdvance), kind)
	assert.Equal(t, 12, seq)

	kind, seq = TokenParts("W3")
	assert.Equal(t, byte(TokenWalkIn), kind)
	assert.Equal(t, 3, seq)
}
