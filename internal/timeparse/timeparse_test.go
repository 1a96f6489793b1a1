package timeparse

import (
	"errors"
	"testing"
	"time"
)

var parseBase = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestParseRelativeCompactUnits(t *testing.T) {
	got, err := ParseRelative("1y2w3d", parseBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := parseBase.AddDate(1, 0, 17)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseRelativeVerboseUnits(t *testing.T) {
	got, err := ParseRelative("2 hours 30 minutes", parseBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := parseBase.Add(2*time.Hour + 30*time.Minute)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseRelativeMixedFormsAndRepeatedUnitsSum(t *testing.T) {
	got, err := ParseRelative("1h 1 hour 30m", parseBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := parseBase.Add(2*time.Hour + 30*time.Minute)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseRelativeLeapDayRollsForward(t *testing.T) {
	leap := time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)

	got, err := ParseRelative("1y", leap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected roll-forward to %v, got %v", want, got)
	}
}

func TestParseRelativeRejectsInputWithoutUnits(t *testing.T) {
	for _, input := range []string{"", "soon", "tomorrow", "12"} {
		if _, err := ParseRelative(input, parseBase); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("input %q: expected ErrUnparsable, got %v", input, err)
		}
	}
}

func TestParseDuration(t *testing.T) {
	got, err := ParseDuration("1w2d3h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 9*24*time.Hour + 3*time.Hour
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseDurationRejectsYears(t *testing.T) {
	if _, err := ParseDuration("1y2h"); !errors.Is(err, ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
}

func TestParseAbsolute(t *testing.T) {
	zone, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load zone: %v", err)
	}

	got, err := ParseAbsolute("2024-07-04 09:30 PM", zone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2024, time.July, 4, 21, 30, 0, 0, zone).UTC()
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC result, got %v", got.Location())
	}
}

func TestParseAbsoluteNilZoneMeansUTC(t *testing.T) {
	got, err := ParseAbsolute("2024-07-04 09:30 AM", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2024, time.July, 4, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseAbsoluteRejectsDeviations(t *testing.T) {
	inputs := []string{
		"2024/01/01 5:00pm",
		"2024-01-01 17:00",
		"2024-01-01 5:00 PM",
		"Jan 1 2024 5pm",
		"",
	}
	for _, input := range inputs {
		if _, err := ParseAbsolute(input, nil); !errors.Is(err, ErrBadFormat) {
			t.Fatalf("input %q: expected ErrBadFormat, got %v", input, err)
		}
	}
}

func TestFormatAbsoluteRoundTrips(t *testing.T) {
	zone, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load zone: %v", err)
	}

	instant := time.Date(2024, time.May, 1, 3, 15, 0, 0, time.UTC)
	rendered := FormatAbsolute(instant, zone)

	parsed, err := ParseAbsolute(rendered, zone)
	if err != nil {
		t.Fatalf("round trip failed on %q: %v", rendered, err)
	}
	if !parsed.Equal(instant) {
		t.Fatalf("expected %v, got %v", instant, parsed)
	}
}

func TestLoadZone(t *testing.T) {
	if _, ok := LoadZone("Europe/Berlin"); !ok {
		t.Fatal("expected Europe/Berlin to resolve")
	}

	for _, name := range []string{"none", "NONE", "", "Mars/Olympus"} {
		if _, ok := LoadZone(name); ok {
			t.Fatalf("expected %q to report ok=false", name)
		}
	}
}
