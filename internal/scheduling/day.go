package scheduling

import (
	"fmt"
	"time"
)

// Day is a calendar date with no time zone attached. Callers exchange days
// as YYYY-MM-DD strings; the clinic location is applied when a day is
// anchored to instants.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

func NewDay(year int, month time.Month, date int) Day {
	return Day{Year: year, Month: month, Date: date}
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// DayOf extracts the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// Start is midnight of the day in the given location.
func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, loc)
}

// End is midnight of the following day in the given location.
func (d Day) End(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Date+1, 0, 0, 0, 0, loc)
}

func (d Day) Next() Day {
	return DayOf(d.Start(time.UTC).AddDate(0, 0, 1))
}

func (d Day) Weekday() time.Weekday {
	return d.Start(time.UTC).Weekday()
}

func (d Day) String() string {
	return d.Start(time.UTC).Format("2006-01-02")
}
