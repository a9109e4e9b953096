package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/sheetsync"
	"github.com/steipete/sheetcal/internal/timeparse"
)

// PeriodFlags overrides the period cells of a download. With none set the
// period is read from the sheet.
type PeriodFlags struct {
	From      string `name:"from" help:"First day (date or relative: today, tomorrow, monday, next friday)"`
	To        string `name:"to" help:"Last day, inclusive (defaults to --from)"`
	Today     bool   `name:"today" help:"Today only"`
	Week      bool   `name:"week" help:"This week (uses --week-start, default Mon)"`
	Days      int    `name:"days" help:"Next N days starting today" default:"0"`
	WeekStart string `name:"week-start" help:"Week start day for --week (sun, mon, ...)" default:""`
}

func (f PeriodFlags) isSet() bool {
	return strings.TrimSpace(f.From) != "" || strings.TrimSpace(f.To) != "" || f.Today || f.Week || f.Days > 0
}

// resolve turns the flags into an inclusive day range in loc. It returns nil
// when no flag is set.
func (f PeriodFlags) resolve(now time.Time, loc *time.Location) (*sheetsync.Period, error) {
	if f.Days < 0 {
		return nil, usage("--days must be positive")
	}
	if !f.isSet() {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	today := timeparse.DateOf(now)

	shortcuts := 0
	for _, on := range []bool{f.Today, f.Week, f.Days > 0} {
		if on {
			shortcuts++
		}
	}
	hasRange := strings.TrimSpace(f.From) != "" || strings.TrimSpace(f.To) != ""
	if shortcuts > 1 || (shortcuts == 1 && hasRange) {
		return nil, usage("use only one of --from/--to, --today, --week or --days")
	}

	var p sheetsync.Period
	switch {
	case f.Today:
		p = sheetsync.Period{Start: today, End: today}
	case f.Week:
		weekStart, err := resolveWeekStart(f.WeekStart)
		if err != nil {
			return nil, err
		}
		offset := (int(now.Weekday()) - int(weekStart) + 7) % 7
		start := today.AddDays(-offset)
		p = sheetsync.Period{Start: start, End: start.AddDays(6)}
	case f.Days > 0:
		p = sheetsync.Period{Start: today, End: today.AddDays(f.Days - 1)}
	default:
		from, to := strings.TrimSpace(f.From), strings.TrimSpace(f.To)
		if from == "" {
			from = "today"
		}
		if to == "" {
			to = from
		}
		start, err := timeparse.ParseRangeExpr(from, now, loc)
		if err != nil {
			return nil, newUsageError(fmt.Errorf("--from: %w", err))
		}
		end, err := timeparse.ParseRangeExpr(to, now, loc)
		if err != nil {
			return nil, newUsageError(fmt.Errorf("--to: %w", err))
		}
		p = sheetsync.Period{Start: timeparse.DateOf(start.In(loc)), End: timeparse.DateOf(end.In(loc))}
	}

	if p.End.In(loc).Before(p.Start.In(loc)) {
		return nil, usagef("--to (%s) is before --from (%s)", p.End, p.Start)
	}
	return &p, nil
}

func resolveWeekStart(value string) (time.Weekday, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return time.Monday, nil
	}
	days := map[string]time.Weekday{
		"sun": time.Sunday, "sunday": time.Sunday,
		"mon": time.Monday, "monday": time.Monday,
		"tue": time.Tuesday, "tuesday": time.Tuesday,
		"wed": time.Wednesday, "wednesday": time.Wednesday,
		"thu": time.Thursday, "thursday": time.Thursday,
		"fri": time.Friday, "friday": time.Friday,
		"sat": time.Saturday, "saturday": time.Saturday,
	}
	if d, ok := days[value]; ok {
		return d, nil
	}
	return time.Sunday, usagef("invalid --week-start %q (expected sun..sat)", value)
}
