package engine

import (
	"testing"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

func at(hour int) time.Time {
	// Monday 2026-03-09.
	return time.Date(2026, 3, 9, hour, 30, 0, 0, time.UTC)
}

func TestTimeWindowNilAlwaysMatches(t *testing.T) {
	if !timeWindowMatches(nil, at(3)) {
		t.Error("nil window should always match")
	}
}

func TestTimeWindowHourBoundaries(t *testing.T) {
	tba := &types.TimeBasedAccess{
		AllowedHours: []types.HourRange{{Start: "09:00", End: "17:00"}},
	}

	// Inclusive on both ends at hour granularity.
	for _, hour := range []int{9, 12, 17} {
		if !timeWindowMatches(tba, at(hour)) {
			t.Errorf("hour %d should be inside the window", hour)
		}
	}
	for _, hour := range []int{8, 18, 0, 23} {
		if timeWindowMatches(tba, at(hour)) {
			t.Errorf("hour %d should be outside the window", hour)
		}
	}
}

func TestTimeWindowMinutesIgnored(t *testing.T) {
	// "09:30" truncates to hour 9: 09:05 is already inside.
	tba := &types.TimeBasedAccess{
		AllowedHours: []types.HourRange{{Start: "09:30", End: "17:30"}},
	}
	early := time.Date(2026, 3, 9, 9, 5, 0, 0, time.UTC)
	if !timeWindowMatches(tba, early) {
		t.Error("minutes must not participate in the comparison")
	}
	late := time.Date(2026, 3, 9, 17, 45, 0, 0, time.UTC)
	if !timeWindowMatches(tba, late) {
		t.Error("17:45 is still within hour 17")
	}
}

func TestTimeWindowMultipleRanges(t *testing.T) {
	tba := &types.TimeBasedAccess{
		AllowedHours: []types.HourRange{
			{Start: "09:00", End: "12:00"},
			{Start: "14:00", End: "17:00"},
		},
	}
	if !timeWindowMatches(tba, at(10)) || !timeWindowMatches(tba, at(15)) {
		t.Error("hours inside either range should match")
	}
	if timeWindowMatches(tba, at(13)) {
		t.Error("the gap between ranges should not match")
	}
}

func TestTimeWindowWeekdayCaseInsensitive(t *testing.T) {
	monday := at(10)

	for _, days := range [][]string{{"monday"}, {"Monday"}, {"MONDAY"}} {
		tba := &types.TimeBasedAccess{AllowedDays: days}
		if !timeWindowMatches(tba, monday) {
			t.Errorf("allowedDays %v should match Monday regardless of case", days)
		}
	}

	tba := &types.TimeBasedAccess{AllowedDays: []string{"saturday", "sunday"}}
	if timeWindowMatches(tba, monday) {
		t.Error("Monday should not match a weekend-only window")
	}
}

func TestTimeWindowValidityBounds(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	tba := &types.TimeBasedAccess{ValidFrom: &from, ValidUntil: &until}

	if !timeWindowMatches(tba, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("instant inside the validity interval should match")
	}
	if timeWindowMatches(tba, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Error("instant before validFrom should not match")
	}
	if timeWindowMatches(tba, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("instant after validUntil should not match")
	}
	// Bounds are inclusive.
	if !timeWindowMatches(tba, from) || !timeWindowMatches(tba, until) {
		t.Error("validity bounds are inclusive")
	}
}

func TestTimeWindowMalformedHoursFailClosed(t *testing.T) {
	tba := &types.TimeBasedAccess{
		AllowedHours: []types.HourRange{{Start: "morning", End: "17:00"}},
	}
	if timeWindowMatches(tba, at(10)) {
		t.Error("unparseable hour bound should not match")
	}
}

func TestParseHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 9, true},
		{"9:30", 9, true},
		{"17:59", 17, true},
		{"0:00", 0, true},
		{"23:00", 23, true},
		{"24:00", 0, false},
		{"-1:00", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseHour(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseHour(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
