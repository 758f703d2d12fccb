package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var (
	monday  = NewDay(2025, time.June, 2)
	tuesday = NewDay(2025, time.June, 3)
	sunday  = NewDay(2025, time.June, 8)
)

func TestParseRecurrence(t *testing.T) {
	spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":[1,3],"startTime":"09:00","endTime":"17:30"}`)
	require.NoError(t, err)

	assert.Equal(t, FrequencyWeekly, spec.Frequency)
	assert.True(t, spec.Days[time.Monday])
	assert.True(t, spec.Days[time.Wednesday])
	assert.False(t, spec.Days[time.Sunday])
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 0}, spec.Start)
	assert.Equal(t, TimeOfDay{Hour: 17, Minute: 30}, spec.End)
}

func TestParseRecurrenceWeekdayConventions(t *testing.T) {
	tests := []struct {
		name string
		days string
		want []time.Weekday
	}{
		{"sunday-first zero", `[0]`, []time.Weekday{time.Sunday}},
		{"monday-first seven", `[7]`, []time.Weekday{time.Sunday}},
		{"one means monday in both", `[1]`, []time.Weekday{time.Monday}},
		{"six means saturday in both", `[6]`, []time.Weekday{time.Saturday}},
		{"mixed set", `[0,1,7]`, []time.Weekday{time.Sunday, time.Monday}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":` + tt.days + `,"startTime":"09:00","endTime":"10:00"}`)
			require.NoError(t, err)

			for _, wd := range tt.want {
				assert.True(t, spec.Days[wd], "expected %s covered", wd)
			}
			assert.Len(t, spec.Days, len(tt.want))
		})
	}
}

func TestParseRecurrenceMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"bad json", `{not json`},
		{"missing frequency", `{"daysOfWeek":[1],"startTime":"09:00","endTime":"10:00"}`},
		{"empty days", `{"frequency":"WEEKLY","daysOfWeek":[],"startTime":"09:00","endTime":"10:00"}`},
		{"day above range", `{"frequency":"WEEKLY","daysOfWeek":[8],"startTime":"09:00","endTime":"10:00"}`},
		{"negative day", `{"frequency":"WEEKLY","daysOfWeek":[-1],"startTime":"09:00","endTime":"10:00"}`},
		{"bad start time", `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"9am","endTime":"10:00"}`},
		{"hour out of range", `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"25:00","endTime":"26:00"}`},
		{"minute out of range", `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:75","endTime":"10:00"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecurrence(tt.payload)
			require.ErrorIs(t, err, ErrMalformedRule)
		})
	}
}

func TestBlockForMatchingDay(t *testing.T) {
	spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"12:00"}`)
	require.NoError(t, err)

	start, end, ok := spec.BlockFor(monday, time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC), end)
}

func TestBlockForNonMatchingDay(t *testing.T) {
	spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"12:00"}`)
	require.NoError(t, err)

	_, _, ok := spec.BlockFor(tuesday, time.UTC)
	assert.False(t, ok)
}

func TestBlockForSundayBothConventions(t *testing.T) {
	for _, days := range []string{`[0]`, `[7]`} {
		spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":` + days + `,"startTime":"08:00","endTime":"10:00"}`)
		require.NoError(t, err)

		_, _, ok := spec.BlockFor(sunday, time.UTC)
		assert.True(t, ok, "days=%s should cover Sunday", days)
	}
}

func TestBlockForIgnoresNonWeeklyFrequency(t *testing.T) {
	spec, err := ParseRecurrence(`{"frequency":"MONTHLY","daysOfWeek":[1],"startTime":"09:00","endTime":"12:00"}`)
	require.NoError(t, err)

	_, _, ok := spec.BlockFor(monday, time.UTC)
	assert.False(t, ok)
}

func TestBlockForIgnoresInvertedWindow(t *testing.T) {
	spec, err := ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"12:00","endTime":"09:00"}`)
	require.NoError(t, err)

	_, _, ok := spec.BlockFor(monday, time.UTC)
	assert.False(t, ok)

	// Zero-length window is equally ignored.
	spec, err = ParseRecurrence(`{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"09:00"}`)
	require.NoError(t, err)

	_, _, ok = spec.BlockFor(monday, time.UTC)
	assert.False(t, ok)
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, monday, day)
	assert.Equal(t, time.Monday, day.Weekday())
	assert.Equal(t, "2025-06-02", day.String())

	_, err = ParseDay("02/06/2025")
	require.Error(t, err)
}

func TestDayNextCrossesMonth(t *testing.T) {
	day := NewDay(2025, time.June, 30)
	assert.Equal(t, NewDay(2025, time.July, 1), day.Next())
}
