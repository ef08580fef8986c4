package scheduler

import "time"

// startGrace is how far before the first session a break may begin and still
// count as the doctor's nominal first break.
const startGrace = time.Minute

// DelayInput is the snapshot needed to measure a doctor's lateness for a
// single day.
type DelayInput struct {
	Status     ConsultationStatus
	Sessions   []Session
	Extensions map[int]string
	Date       time.Time
	Breaks     []BreakInterval
	Now        time.Time
}

// DelayResult carries the computed lateness and the baseline it was measured
// against.
type DelayResult struct {
	DelayMinutes   int       `json:"delay_minutes"`
	EffectiveStart time.Time `json:"effective_start"`
}

// ComputeDelay measures the doctor's current lateness relative to the first
// session start. Delay is zero before the (break-adjusted) session start,
// while the doctor is consulting, during any scheduled break, and once the
// last session's effective end has passed. The computation is a pure function
// of its input: repeated calls with identical snapshots yield identical
// results.
func ComputeDelay(in DelayInput) DelayResult {
	if len(in.Sessions) == 0 {
		return DelayResult{}
	}

	firstStart, ok := parseClock(in.Date, in.Sessions[0].Start)
	if !ok {
		return DelayResult{}
	}

	// Delay is measured only after the doctor's nominal first break, if one
	// begins at (or within a minute before) the session start.
	effectiveStart := firstStart
	for _, brk := range in.Breaks {
		if brk.Start.After(firstStart) || brk.Start.Before(firstStart.Add(-startGrace)) {
			continue
		}
		if !brk.End.After(firstStart) {
			continue
		}
		if brk.End.After(effectiveStart) {
			effectiveStart = brk.End
		}
	}

	result := DelayResult{EffectiveStart: effectiveStart}

	if in.Now.Before(effectiveStart) || in.Status == ConsultationIn {
		return result
	}

	// Break protection: lateness is a measure of queue delay outside
	// scheduled breaks, never during them.
	for _, brk := range in.Breaks {
		if brk.Contains(in.Now) {
			return result
		}
	}

	// Delay only applies while the consulting day is still open.
	if end, ok := lastSessionEnd(in.Date, in.Sessions, in.Extensions); ok && in.Now.After(end) {
		return result
	}

	elapsed := int(in.Now.Sub(effectiveStart).Minutes())
	if elapsed > 0 {
		result.DelayMinutes = elapsed
	}
	return result
}

func lastSessionEnd(date time.Time, sessions []Session, extensions map[int]string) (time.Time, bool) {
	for i := len(sessions) - 1; i >= 0; i-- {
		if end, ok := effectiveEnd(date, sessions[i], extensions[i]); ok {
			return end, true
		}
	}
	return time.Time{}, false
}

// Thresholds are the persisted cutoff and no-show instants for one
// appointment, both already shifted by completed breaks and current delay.
type Thresholds struct {
	CutOff       time.Time `json:"cut_off"`
	NoShow       time.Time `json:"no_show"`
	DelayMinutes int       `json:"delay_minutes"`
}

// AppointmentThresholds derives the skip/no-show thresholds for a slot. The
// nominal slot time slides forward by the cumulative duration of every
// completed break starting at or before it (slots shift later as breaks are
// taken), then the delay offset is applied on top.
func AppointmentThresholds(slotTime time.Time, breaks []BreakInterval, delayMinutes int, now time.Time) Thresholds {
	adjusted := slotTime
	for _, brk := range breaks {
		if brk.Start.After(slotTime) {
			continue
		}
		if brk.End.After(now) {
			continue // break not yet taken in full
		}
		adjusted = adjusted.Add(brk.End.Sub(brk.Start))
	}

	delay := time.Duration(delayMinutes) * time.Minute
	return Thresholds{
		CutOff:       adjusted.Add(-ThresholdWindow).Add(delay),
		NoShow:       adjusted.Add(ThresholdWindow).Add(delay),
		DelayMinutes: delayMinutes,
	}
}
