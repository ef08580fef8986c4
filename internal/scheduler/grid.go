package scheduler

import (
	"sort"
	"time"
)

// BuildSlotGrid expands a day's sessions into the chronological slot sequence
// for the given date. Extensions map a session index to a replacement end
// time; an extension only takes effect when it is later than the base end.
// The slot index continues across session boundaries. Sessions with missing
// or malformed times contribute no slots.
func BuildSlotGrid(date time.Time, sessions []Session, extensions map[int]string, duration time.Duration) []Slot {
	if duration <= 0 {
		duration = ConsultationDuration
	}

	grid := make([]Slot, 0, len(sessions)*8)
	index := 0

	for si, session := range sessions {
		start, ok := parseClock(date, session.Start)
		if !ok {
			continue
		}
		end, ok := effectiveEnd(date, session, extensions[si])
		if !ok {
			continue
		}

		// Half-open interval: no slot is emitted at the end time itself.
		for t := start; t.Before(end); t = t.Add(duration) {
			grid = append(grid, Slot{Index: index, Session: si, Time: t})
			index++
		}
	}

	return grid
}

// effectiveEnd resolves a session's end time, applying an extension only when
// it pushes the end later than the base value.
func effectiveEnd(date time.Time, session Session, extension string) (time.Time, bool) {
	base, ok := parseClock(date, session.End)
	if !ok {
		return time.Time{}, false
	}
	if extension == "" {
		return base, true
	}
	extended, ok := parseClock(date, extension)
	if !ok || !extended.After(base) {
		return base, true
	}
	return extended, true
}

// SessionSlots splits a grid back into per-session subsequences, preserving
// declared session order.
func SessionSlots(grid []Slot) [][]Slot {
	if len(grid) == 0 {
		return nil
	}
	maxSession := 0
	for _, slot := range grid {
		if slot.Session > maxSession {
			maxSession = slot.Session
		}
	}
	sessions := make([][]Slot, maxSession+1)
	for _, slot := range grid {
		sessions[slot.Session] = append(sessions[slot.Session], slot)
	}
	return sessions
}

// MergeLeaveSlots converts point-in-time leave markers on a date into merged
// break intervals. Contiguous markers (one ending exactly where the next
// begins) collapse into a single interval. Unparsable markers are dropped so
// a single bad record cannot block the rest of the day.
func MergeLeaveSlots(date time.Time, markers []string, duration time.Duration) []BreakInterval {
	if duration <= 0 {
		duration = ConsultationDuration
	}

	starts := make([]time.Time, 0, len(markers))
	for _, marker := range markers {
		t, ok := parseClock(date, marker)
		if !ok {
			continue
		}
		starts = append(starts, t)
	}
	if len(starts) == 0 {
		return nil
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	intervals := make([]BreakInterval, 0, len(starts))
	current := BreakInterval{Start: starts[0], End: starts[0].Add(duration)}
	for _, start := range starts[1:] {
		if start.Equal(current.Start) {
			continue // duplicate marker
		}
		if !start.After(current.End) {
			current.End = start.Add(duration)
			continue
		}
		intervals = append(intervals, current)
		current = BreakInterval{Start: start, End: start.Add(duration)}
	}
	intervals = append(intervals, current)

	return intervals
}
