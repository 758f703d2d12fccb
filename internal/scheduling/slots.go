package scheduling

import "time"

// PartitionBlock splits [start, end) into contiguous fixed-duration slots.
// A remainder shorter than one full duration is dropped. Pure function of
// its inputs.
func PartitionBlock(start, end time.Time, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}

	var slots []Slot
	for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
		slots = append(slots, Slot{
			Start:    t,
			End:      t.Add(duration),
			Duration: duration,
		})
	}
	return slots
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. A slot ending exactly when another begins does
// not overlap it.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FilterConflicts keeps only the slots that overlap none of the busy
// intervals.
func FilterConflicts(slots []Slot, busy []Interval) []Slot {
	if len(busy) == 0 {
		return slots
	}

	free := make([]Slot, 0, len(slots))
	for _, s := range slots {
		conflicted := false
		for _, b := range busy {
			if Overlaps(s.Start, s.End, b.Start, b.End) {
				conflicted = true
				break
			}
		}
		if !conflicted {
			free = append(free, s)
		}
	}
	return free
}
