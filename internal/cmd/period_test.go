package cmd

import (
	"testing"
	"time"
)

func TestPeriodFlagsResolve(t *testing.T) {
	t.Parallel()

	// Wednesday.
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		flags     PeriodFlags
		wantStart string
		wantEnd   string
		wantNil   bool
		wantErr   bool
	}{
		{name: "unset", flags: PeriodFlags{}, wantNil: true},
		{name: "today", flags: PeriodFlags{Today: true}, wantStart: "2024-01-10", wantEnd: "2024-01-10"},
		{name: "week from monday", flags: PeriodFlags{Week: true}, wantStart: "2024-01-08", wantEnd: "2024-01-14"},
		{name: "week from sunday", flags: PeriodFlags{Week: true, WeekStart: "sun"}, wantStart: "2024-01-07", wantEnd: "2024-01-13"},
		{name: "days", flags: PeriodFlags{Days: 3}, wantStart: "2024-01-10", wantEnd: "2024-01-12"},
		{name: "from only", flags: PeriodFlags{From: "tomorrow"}, wantStart: "2024-01-11", wantEnd: "2024-01-11"},
		{name: "to only", flags: PeriodFlags{To: "2024-01-12"}, wantStart: "2024-01-10", wantEnd: "2024-01-12"},
		{name: "absolute", flags: PeriodFlags{From: "2024-02-01", To: "2024-02-29"}, wantStart: "2024-02-01", wantEnd: "2024-02-29"},
		{name: "reversed", flags: PeriodFlags{From: "2024-01-05", To: "2024-01-01"}, wantErr: true},
		{name: "two shortcuts", flags: PeriodFlags{Today: true, Week: true}, wantErr: true},
		{name: "shortcut and range", flags: PeriodFlags{Days: 2, From: "today"}, wantErr: true},
		{name: "bad week start", flags: PeriodFlags{Week: true, WeekStart: "someday"}, wantErr: true},
		{name: "bad from", flags: PeriodFlags{From: "whenever"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := tt.flags.resolve(now, time.UTC)
			if tt.wantErr {
				if err == nil || ExitCode(err) != 2 {
					t.Fatalf("expected usage error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if tt.wantNil {
				if p != nil {
					t.Fatalf("expected nil period, got %+v", p)
				}
				return
			}
			if p == nil || p.Start.String() != tt.wantStart || p.End.String() != tt.wantEnd {
				t.Fatalf("got %+v, want %s..%s", p, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestPeriodFlagsResolveUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+10", 10*3600)
	// Still the 10th in UTC, already the 11th in loc.
	now := time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)

	p, err := PeriodFlags{Today: true}.resolve(now, loc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Start.String() != "2024-01-11" {
		t.Fatalf("expected the local day, got %s", p.Start)
	}
}
