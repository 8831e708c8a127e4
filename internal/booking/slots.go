package booking

import (
	"iter"
	"time"
)

// Slots generates the bookable slots inside the window: fixed-size,
// non-overlapping, contiguous, chronological. A trailing remainder shorter
// than duration is dropped. An empty or inverted window yields an empty
// sequence. The sequence is restartable; ranging twice gives identical
// results.
func (w AvailabilityWindow) Slots(duration time.Duration) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if !w.IsAvailable || duration < time.Minute {
			return
		}
		for start := w.Start; start.Add(duration) <= w.End; start = start.Add(duration) {
			if !yield(Slot{Start: start, End: start.Add(duration)}) {
				return
			}
		}
	}
}
