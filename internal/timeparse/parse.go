package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyDateTime   = errors.New("empty date/time")
	ErrInvalidDateTime = errors.New("invalid date/time")
	ErrEmptyTimeExpr   = errors.New("empty time expression")
	ErrInvalidTimeExpr = errors.New("invalid time expression")
	ErrEmptyTime       = errors.New("empty time")
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidDuration = errors.New("invalid duration")
)

// ParsedDateTime represents a parsed time expression and whether the input
// carried an explicit clock component.
type ParsedDateTime struct {
	Time    time.Time
	HasTime bool
}

// ParseDateTimeOrDate parses flexible date inputs.
// Supported: RFC3339/RFC3339Nano, ISO-8601 numeric offset (-0800),
// YYYY-MM-DD, and local datetime layouts without timezone.
func ParseDateTimeOrDate(value string, loc *time.Location) (ParsedDateTime, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ParsedDateTime{}, ErrEmptyDateTime
	}

	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ParsedDateTime{Time: t, HasTime: true}, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return ParsedDateTime{Time: t, HasTime: true}, nil
	}

	if t, err := time.Parse("2006-01-02T15:04:05-0700", value); err == nil {
		return ParsedDateTime{Time: t, HasTime: true}, nil
	}

	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return ParsedDateTime{Time: t, HasTime: false}, nil
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ParsedDateTime{Time: t, HasTime: true}, nil
		}
	}

	return ParsedDateTime{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
}

// ParseRangeExpr parses period bound expressions.
// Supported: absolute datetime/date forms from ParseDateTimeOrDate plus
// relative forms (now/today/tomorrow/yesterday/monday/next monday).
func ParseRangeExpr(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, ErrEmptyTimeExpr
	}

	exprLower := strings.ToLower(expr)
	switch exprLower {
	case "now":
		return now, nil
	case "today":
		return StartOfDay(now), nil
	case "tomorrow":
		return StartOfDay(now.AddDate(0, 0, 1)), nil
	case "yesterday":
		return StartOfDay(now.AddDate(0, 0, -1)), nil
	}

	if t, ok := parseWeekday(exprLower, now); ok {
		return t, nil
	}

	parsed, err := ParseDateTimeOrDate(expr, loc)
	if err == nil {
		return parsed.Time, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q (try: 2026-01-05, today, tomorrow, monday)", ErrInvalidTimeExpr, expr)
}

func parseWeekday(expr string, now time.Time) (time.Time, bool) {
	expr = strings.TrimSpace(expr)

	next := false
	if strings.HasPrefix(expr, "next ") {
		next = true
		expr = strings.TrimPrefix(expr, "next ")
	}

	weekdays := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"sun":       time.Sunday,
		"monday":    time.Monday,
		"mon":       time.Monday,
		"tuesday":   time.Tuesday,
		"tue":       time.Tuesday,
		"wednesday": time.Wednesday,
		"wed":       time.Wednesday,
		"thursday":  time.Thursday,
		"thu":       time.Thursday,
		"friday":    time.Friday,
		"fri":       time.Friday,
		"saturday":  time.Saturday,
		"sat":       time.Saturday,
	}

	targetDay, ok := weekdays[expr]
	if !ok {
		return time.Time{}, false
	}

	currentDay := now.Weekday()

	daysUntil := int(targetDay) - int(currentDay)
	if daysUntil < 0 || (daysUntil == 0 && next) {
		daysUntil += 7
	}

	if daysUntil == 0 {
		return StartOfDay(now), true
	}

	return StartOfDay(now.AddDate(0, 0, daysUntil)), true
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
