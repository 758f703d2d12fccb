package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const FrequencyWeekly Frequency = "WEEKLY"

// ErrMalformedRule marks rule payloads that cannot be interpreted. Callers
// skip such rules; a bad rule never aborts an availability computation.
var ErrMalformedRule = errors.New("malformed availability rule")

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// RecurrenceSpec is the validated form of a stored rule payload.
type RecurrenceSpec struct {
	Frequency Frequency
	Days      map[time.Weekday]bool
	Start     TimeOfDay
	End       TimeOfDay
}

type recurrencePayload struct {
	Frequency  string `json:"frequency"`
	DaysOfWeek []int  `json:"daysOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// ParseRecurrence decodes a stored rule payload into a RecurrenceSpec.
//
// Stored day-of-week sets come in two conventions without a discriminant:
// 0-6 with 0=Sunday, or 1-7 with 7=Sunday. Values 1-6 mean the same weekday
// in both, so both map onto the canonical time.Weekday space by folding
// 7 onto Sunday. Anything outside 0..7 makes the rule malformed.
func ParseRecurrence(payload string) (RecurrenceSpec, error) {
	var raw recurrencePayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return RecurrenceSpec{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}

	if raw.Frequency == "" {
		return RecurrenceSpec{}, fmt.Errorf("%w: missing frequency", ErrMalformedRule)
	}
	if len(raw.DaysOfWeek) == 0 {
		return RecurrenceSpec{}, fmt.Errorf("%w: empty daysOfWeek", ErrMalformedRule)
	}

	days := make(map[time.Weekday]bool, len(raw.DaysOfWeek))
	for _, d := range raw.DaysOfWeek {
		wd, err := canonicalWeekday(d)
		if err != nil {
			return RecurrenceSpec{}, err
		}
		days[wd] = true
	}

	start, err := parseTimeOfDay(raw.StartTime)
	if err != nil {
		return RecurrenceSpec{}, err
	}
	end, err := parseTimeOfDay(raw.EndTime)
	if err != nil {
		return RecurrenceSpec{}, err
	}

	return RecurrenceSpec{
		Frequency: Frequency(raw.Frequency),
		Days:      days,
		Start:     start,
		End:       end,
	}, nil
}

func canonicalWeekday(d int) (time.Weekday, error) {
	switch {
	case d == 7:
		return time.Sunday, nil
	case d >= 0 && d <= 6:
		return time.Weekday(d), nil
	default:
		return 0, fmt.Errorf("%w: day of week %d out of range", ErrMalformedRule, d)
	}
}

func parseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: bad time of day %q", ErrMalformedRule, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: bad hour in %q", ErrMalformedRule, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: bad minute in %q", ErrMalformedRule, s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// BlockFor anchors the rule to a calendar date in loc. It returns the half
// open block [start, end) and true when the rule applies to that date.
//
// Non-weekly frequencies and blocks whose end does not fall strictly after
// their start yield no block; both are ignored, not errors.
func (s RecurrenceSpec) BlockFor(day Day, loc *time.Location) (time.Time, time.Time, bool) {
	if s.Frequency != FrequencyWeekly {
		return time.Time{}, time.Time{}, false
	}
	if !s.Days[day.Weekday()] {
		return time.Time{}, time.Time{}, false
	}

	start := time.Date(day.Year, day.Month, day.Date, s.Start.Hour, s.Start.Minute, 0, 0, loc)
	end := time.Date(day.Year, day.Month, day.Date, s.End.Hour, s.End.Minute, 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}
