package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delayInput(now time.Time) DelayInput {
	return DelayInput{
		Status:   ConsultationOut,
		Sessions: []Session{{Start: "09:00", End: "13:00"}},
		Date:     testDate,
		Now:      now,
	}
}

func TestComputeDelayBeforeStart(t *testing.T) {
	result := ComputeDelay(delayInput(at(8, 45)))
	assert.Zero(t, result.DelayMinutes)
	assert.Equal(t, at(9, 0), result.EffectiveStart)
}

func TestComputeDelayElapsedMinutes(t *testing.T) {
	result := ComputeDelay(delayInput(at(9, 25)))
	assert.Equal(t, 25, result.DelayMinutes)
}

func TestComputeDelayZeroWhileConsulting(t *testing.T) {
	in := delayInput(at(9, 25))
	in.Status = ConsultationIn
	assert.Zero(t, ComputeDelay(in).DelayMinutes)
}

func TestComputeDelayBreakProtection(t *testing.T) {
	in := delayInput(at(11, 10))
	in.Breaks = []BreakInterval{{Start: at(11, 0), End: at(11, 30)}}

	// Raw elapsed-since-start is positive, but now lies inside a break.
	assert.Zero(t, ComputeDelay(in).DelayMinutes)
}

func TestComputeDelayFirstBreakShiftsBaseline(t *testing.T) {
	in := delayInput(at(9, 40))
	in.Breaks = []BreakInterval{{Start: at(9, 0), End: at(9, 30)}}

	result := ComputeDelay(in)
	assert.Equal(t, at(9, 30), result.EffectiveStart)
	assert.Equal(t, 10, result.DelayMinutes)
}

func TestComputeDelayBreakJustBeforeStartCounts(t *testing.T) {
	in := delayInput(at(10, 0))
	in.Breaks = []BreakInterval{{Start: at(8, 59), End: at(9, 45)}}

	result := ComputeDelay(in)
	assert.Equal(t, at(9, 45), result.EffectiveStart)
	assert.Equal(t, 15, result.DelayMinutes)
}

func TestComputeDelayResetsAfterDayCloses(t *testing.T) {
	result := ComputeDelay(delayInput(at(13, 30)))
	assert.Zero(t, result.DelayMinutes)
}

func TestComputeDelayExtensionKeepsWindowOpen(t *testing.T) {
	in := delayInput(at(13, 30))
	in.Extensions = map[int]string{0: "14:00"}
	assert.Equal(t, 270, ComputeDelay(in).DelayMinutes)
}

func TestComputeDelayIdempotent(t *testing.T) {
	in := delayInput(at(9, 25))
	in.Breaks = []BreakInterval{{Start: at(11, 0), End: at(11, 30)}}

	first := ComputeDelay(in)
	second := ComputeDelay(in)
	assert.Equal(t, first, second)
}

func TestAppointmentThresholdsPlain(t *testing.T) {
	th := AppointmentThresholds(at(10, 0), nil, 0, at(9, 0))
	assert.Equal(t, at(9, 45), th.CutOff)
	assert.Equal(t, at(10, 15), th.NoShow)
}

func TestAppointmentThresholdsDelayShiftsBoth(t *testing.T) {
	th := AppointmentThresholds(at(10, 0), nil, 20, at(9, 0))
	assert.Equal(t, at(10, 5), th.CutOff)
	assert.Equal(t, at(10, 35), th.NoShow)
	assert.Equal(t, 20, th.DelayMinutes)
}

func TestAppointmentThresholdsCompletedBreakShiftsSlot(t *testing.T) {
	breaks := []BreakInterval{{Start: at(9, 30), End: at(10, 0)}}

	// Break completed: slots at or after its start slide 30 minutes later.
	th := AppointmentThresholds(at(10, 0), breaks, 0, at(10, 30))
	assert.Equal(t, at(10, 15), th.CutOff)
	assert.Equal(t, at(10, 45), th.NoShow)
}

func TestAppointmentThresholdsInProgressBreakDoesNotShift(t *testing.T) {
	breaks := []BreakInterval{{Start: at(9, 30), End: at(10, 0)}}

	th := AppointmentThresholds(at(10, 0), breaks, 0, at(9, 45))
	assert.Equal(t, at(9, 45), th.CutOff)
}

func TestAppointmentThresholdsBreakAfterSlotIgnored(t *testing.T) {
	breaks := []BreakInterval{{Start: at(11, 0), End: at(11, 30)}}

	th := AppointmentThresholds(at(10, 0), breaks, 0, at(12, 0))
	assert.Equal(t, at(9, 45), th.CutOff)
}

func TestAppointmentThresholdsIdempotent(t *testing.T) {
	breaks := []BreakInterval{{Start: at(9, 30), End: at(10, 0)}}
	now := at(10, 30)

	first := AppointmentThresholds(at(10, 0), breaks, 12, now)
	second := AppointmentThresholds(at(10, 0), breaks, 12, now)
	require.Equal(t, first, second)
}
