package scheduler

import (
	"sort"
	"strconv"
	"time"
)

// QueueEntry is the engine's view of one appointment for ordering and status
// evaluation. CutOff and NoShow are the persisted thresholds; nil on legacy
// records that predate the delay propagator.
type QueueEntry struct {
	ID       string
	Date     time.Time
	SlotTime time.Time
	Token    string
	Status   Status
	CutOff   *time.Time
	NoShow   *time.Time
}

// TokenParts splits a queue token into its type letter and numeric sequence.
// Unknown shapes sort as walk-ins with sequence 0.
func TokenParts(token string) (byte, int) {
	if token == "" {
		return TokenWalkIn, 0
	}
	kind := token[0]
	if kind != TokenAdvance && kind != TokenWalkIn {
		return TokenWalkIn, 0
	}
	seq, err := strconv.Atoi(token[1:])
	if err != nil {
		return kind, 0
	}
	return kind, seq
}

// Less defines the queue display order: calendar date, then slot time, then
// token type (advance before walk-in at the identical time), then numeric
// token sequence. The ID fallback keeps the order strict even for malformed
// tokens.
func Less(a, b QueueEntry) bool {
	if !sameDay(a.Date, b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.SlotTime.Equal(b.SlotTime) {
		return a.SlotTime.Before(b.SlotTime)
	}
	aKind, aSeq := TokenParts(a.Token)
	bKind, bSeq := TokenParts(b.Token)
	if aKind != bKind {
		return aKind == TokenAdvance
	}
	if aSeq != bSeq {
		return aSeq < bSeq
	}
	return a.ID < b.ID
}

// SortQueue orders entries in place by the queue display order.
func SortQueue(entries []QueueEntry) {
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// cutOff resolves the stored cutoff, falling back to slot−15m for legacy
// records without a persisted value.
func (e QueueEntry) cutOff() time.Time {
	if e.CutOff != nil {
		return *e.CutOff
	}
	return e.SlotTime.Add(-ThresholdWindow)
}

func (e QueueEntry) noShow() time.Time {
	if e.NoShow != nil {
		return *e.NoShow
	}
	return e.SlotTime.Add(ThresholdWindow)
}

// NextStatus evaluates the level-triggered transitions PENDING → SKIPPED and
// SKIPPED → NO_SHOW against the entry's stored thresholds. It returns the
// new status and whether a transition fired; re-evaluating after a
// transition has occurred is a no-op.
func NextStatus(e QueueEntry, now time.Time) (Status, bool) {
	switch e.Status {
	case StatusPending:
		if !now.Before(e.cutOff()) {
			return StatusSkipped, true
		}
	case StatusSkipped:
		if !now.Before(e.noShow()) {
			return StatusNoShow, true
		}
	}
	return e.Status, false
}
