package canonical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleTime is a number of seconds since the start of the service day.
// Values of 24:00:00 and above are post-midnight times on the same service day.
type ScheduleTime int

func ParseScheduleTime(s string) (ScheduleTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	values := make([]int, 3)
	for i, part := range parts {
		if part == "" {
			return 0, fmt.Errorf("invalid time %q", s)
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("invalid time %q", s)
		}

		values[i] = n
	}

	return ScheduleTime(values[0]*3600 + values[1]*60 + values[2]), nil
}

func (t ScheduleTime) Hours() int {
	return int(t) / 3600
}

func (t ScheduleTime) String() string {
	s := int(t)
	m, s := s/60, s%60
	h, m := m/60, m%60

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// DayOffset is how many days past the service day this time falls on
func (t ScheduleTime) DayOffset() int {
	return int(t) / 86400
}

// Duration is the offset of this time from midnight of the service day
func (t ScheduleTime) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts either YYYYMMDD or YYYY-MM-DD and rejects impossible dates
func ParseDate(s string) (Date, error) {
	layout := "20060102"
	if strings.Contains(s, "-") {
		layout = "2006-01-02"
	}

	parsed, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}

	return NewDateFromTime(parsed), nil
}

func NewDateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) Time(location *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, location)
}

func (d Date) AddDays(n int) Date {
	return NewDateFromTime(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// At places a schedule time on this service day. GTFS service days start at
// noon minus twelve hours so that daylight saving changes do not shift times.
func (d Date) At(t ScheduleTime, location *time.Location) time.Time {
	noon := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, location)
	return noon.Add(-12 * time.Hour).Add(t.Duration())
}
