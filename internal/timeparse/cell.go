package timeparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateOrder selects which textual date form is tried first.
type DateOrder int

const (
	// DayFirst tries D/M/YYYY before ISO and general forms (manual locale entry).
	DayFirst DateOrder = iota
	// ISOFirst tries YYYY-MM-DD before D/M/YYYY.
	ISOFirst
)

// ParseDateOrder maps a config value to a DateOrder. Empty means DayFirst.
func ParseDateOrder(value string) (DateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "day_first", "day-first", "dmy":
		return DayFirst, nil
	case "iso_first", "iso-first", "iso":
		return ISOFirst, nil
	default:
		return DayFirst, fmt.Errorf("invalid date order %q (use day_first or iso_first)", value)
	}
}

// CalendarDate is a date without a clock component.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDate validates y-m-d as a real calendar date.
func NewCalendarDate(year int, month time.Month, day int) (CalendarDate, bool) {
	if year < 1 || month < time.January || month > time.December || day < 1 || day > 31 {
		return CalendarDate{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return CalendarDate{}, false
	}
	return CalendarDate{Year: year, Month: month, Day: day}, true
}

// DateOf projects t onto its wall-clock calendar day, without shifting zones.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d CalendarDate) IsZero() bool { return d == CalendarDate{} }

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// In returns midnight of d in loc.
func (d CalendarDate) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// TimeOf projects t onto its wall-clock time of day. Seconds are dropped.
func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (c TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c TimeOfDay) valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Compose joins a local date and a local time into an instant in loc.
func Compose(d CalendarDate, c TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// FormatDateOnly renders the calendar day of t as YYYY-MM-DD.
func FormatDateOnly(t time.Time) string { return DateOf(t).String() }

// FormatTimeOnly renders the wall-clock time of t as HH:MM.
func FormatTimeOnly(t time.Time) string { return TimeOf(t).String() }

var (
	dayFirstPattern = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
	isoDatePattern  = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	clockPattern    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
)

// generalDateLayouts are tried after the numeric patterns; the wall-clock
// date as written is kept even when the text carries an offset.
var generalDateLayouts = []string{
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon Jan 2 2006",
	"Mon, 2 Jan 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"2006-01-02T15:04:05.000Z",
}

// DateFromCell normalizes a cell value into a CalendarDate. Native values
// (time.Time, CalendarDate, spreadsheet serial numbers) are taken as-is;
// text is matched per order and then against general date forms. The bool
// is false when the value is empty or not a date.
func DateFromCell(raw any, order DateOrder) (CalendarDate, bool) {
	switch v := raw.(type) {
	case nil:
		return CalendarDate{}, false
	case CalendarDate:
		return v, !v.IsZero()
	case time.Time:
		if v.IsZero() {
			return CalendarDate{}, false
		}
		return DateOf(v), true
	case float64:
		return DateFromSerial(v)
	case int:
		return DateFromSerial(float64(v))
	case int64:
		return DateFromSerial(float64(v))
	case string:
		return dateFromText(v, order)
	default:
		return CalendarDate{}, false
	}
}

func dateFromText(value string, order DateOrder) (CalendarDate, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return CalendarDate{}, false
	}

	matchers := []func(string) (CalendarDate, bool){matchDayFirst, matchISO}
	if order == ISOFirst {
		matchers = []func(string) (CalendarDate, bool){matchISO, matchDayFirst}
	}
	for _, m := range matchers {
		if d, ok := m(value); ok {
			return d, true
		}
	}

	if parsed, err := ParseDateTimeOrDate(value, time.Local); err == nil {
		return DateOf(parsed.Time), true
	}
	for _, layout := range generalDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), true
		}
	}
	return CalendarDate{}, false
}

func matchDayFirst(value string) (CalendarDate, bool) {
	m := dayFirstPattern.FindStringSubmatch(value)
	if m == nil {
		return CalendarDate{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return NewCalendarDate(year, time.Month(month), day)
}

func matchISO(value string) (CalendarDate, bool) {
	m := isoDatePattern.FindStringSubmatch(value)
	if m == nil {
		return CalendarDate{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return NewCalendarDate(year, time.Month(month), day)
}

// TimeFromCell normalizes a cell value into a TimeOfDay. Accepted: native
// time values, a numeric day fraction (the integer part of a date-time
// serial is ignored), or H:MM / H:MM:SS text. display is the cell's
// rendered text and is tried when raw itself is not usable.
func TimeFromCell(raw any, display string) (TimeOfDay, error) {
	c, err := timeFromValue(raw)
	if err == nil {
		return c, nil
	}
	if strings.TrimSpace(display) != "" {
		if c, derr := timeFromText(display); derr == nil {
			return c, nil
		}
	}
	return TimeOfDay{}, err
}

func timeFromValue(raw any) (TimeOfDay, error) {
	switch v := raw.(type) {
	case nil:
		return TimeOfDay{}, ErrEmptyTime
	case TimeOfDay:
		if !v.valid() {
			return TimeOfDay{}, fmt.Errorf("%w: %s", ErrInvalidTime, v)
		}
		return v, nil
	case time.Time:
		return TimeOf(v), nil
	case float64:
		return timeFromFraction(v)
	case int:
		return timeFromFraction(float64(v))
	case int64:
		return timeFromFraction(float64(v))
	case string:
		return timeFromText(v)
	default:
		return TimeOfDay{}, fmt.Errorf("%w: %v", ErrInvalidTime, raw)
	}
}

func timeFromFraction(v float64) (TimeOfDay, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return TimeOfDay{}, fmt.Errorf("%w: %v", ErrInvalidTime, v)
	}
	frac := v - math.Floor(v)
	seconds := int(math.Round(frac * 24 * 60 * 60))
	seconds %= 24 * 60 * 60
	return TimeOfDay{Hour: seconds / 3600, Minute: (seconds % 3600) / 60}, nil
}

func timeFromText(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return TimeOfDay{}, ErrEmptyTime
	}
	m := clockPattern.FindStringSubmatch(value)
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	c := TimeOfDay{Hour: hour, Minute: minute}
	if m[3] != "" {
		if sec, _ := strconv.Atoi(m[3]); sec > 59 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
		}
	}
	if !c.valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return c, nil
}

// DurationFromCell parses a duration in hours. It must be finite and > 0.
func DurationFromCell(raw any) (float64, error) {
	var hours float64
	switch v := raw.(type) {
	case float64:
		hours = v
	case int:
		hours = float64(v)
	case int64:
		hours = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, v)
		}
		hours = f
	case nil:
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, raw)
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return 0, fmt.Errorf("%w: %v (must be a positive number of hours)", ErrInvalidDuration, hours)
	}
	return hours, nil
}

// HoursToDuration converts fractional hours into a time.Duration rounded to
// the nearest second.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours*3600)) * time.Second
}
