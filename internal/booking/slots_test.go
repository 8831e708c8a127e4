package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func window(t *testing.T, start, end string) AvailabilityWindow {
	t.Helper()
	return AvailabilityWindow{
		Weekday:     time.Monday,
		Start:       mustTime(t, start),
		End:         mustTime(t, end),
		IsAvailable: true,
	}
}

func collect(w AvailabilityWindow, d time.Duration) []Slot {
	var slots []Slot
	for s := range w.Slots(d) {
		slots = append(slots, s)
	}
	return slots
}

func TestSlotsExactSequence(t *testing.T) {
	got := collect(window(t, "09:00", "10:00"), 30*time.Minute)

	want := []Slot{
		{Start: mustTime(t, "09:00"), End: mustTime(t, "09:30")},
		{Start: mustTime(t, "09:30"), End: mustTime(t, "10:00")},
	}
	assert.Equal(t, want, got)
}

func TestSlotsDropTrailingRemainder(t *testing.T) {
	got := collect(window(t, "09:00", "09:45"), 30*time.Minute)

	want := []Slot{
		{Start: mustTime(t, "09:00"), End: mustTime(t, "09:30")},
	}
	assert.Equal(t, want, got)
}

func TestSlotsDeterministicAndRestartable(t *testing.T) {
	w := window(t, "08:00", "17:00")
	seq := w.Slots(30 * time.Minute)

	var first, second []Slot
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}

	require.Len(t, first, 18)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Equal(t, first[i-1].End, first[i].Start, "slots must be contiguous")
	}
}

func TestSlotsEmptyWindow(t *testing.T) {
	assert.Empty(t, collect(window(t, "10:00", "10:00"), 30*time.Minute))
	assert.Empty(t, collect(window(t, "11:00", "10:00"), 30*time.Minute))

	unavailable := window(t, "09:00", "17:00")
	unavailable.IsAvailable = false
	assert.Empty(t, collect(unavailable, 30*time.Minute))
}

func TestSlotsWindowShorterThanDuration(t *testing.T) {
	assert.Empty(t, collect(window(t, "09:00", "09:20"), 30*time.Minute))
}

func TestSlotsDegenerateDuration(t *testing.T) {
	w := window(t, "09:00", "17:00")
	assert.Empty(t, collect(w, 0))
	assert.Empty(t, collect(w, -time.Hour))
	assert.Empty(t, collect(w, 30*time.Second))
}

func TestSlotsEarlyBreak(t *testing.T) {
	w := window(t, "09:00", "17:00")
	count := 0
	for range w.Slots(30 * time.Minute) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}
