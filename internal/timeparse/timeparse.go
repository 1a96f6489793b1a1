// Package timeparse converts free-form relative and strict absolute time
// expressions into instants, applying per-member timezone preferences at the
// input boundary only. Everything it returns is normalized to UTC.
package timeparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AbsoluteLayout is the single accepted and displayed absolute time pattern.
const AbsoluteLayout = "2006-01-02 03:04 PM"

var (
	// ErrUnparsable indicates no unit of a relative expression matched.
	// Callers must re-prompt rather than assume a default.
	ErrUnparsable = errors.New("timeparse: unparsable relative expression")
	// ErrBadFormat indicates an absolute expression deviated from
	// AbsoluteLayout. The error message to users should include an example
	// built from the current time.
	ErrBadFormat = errors.New("timeparse: absolute time must match YYYY-MM-DD hh:mm AM/PM")
)

// Compact form: digits immediately followed by a single unit letter, any
// subset, any order, concatenable ("1y2w3d"). Verbose form: digits, whitespace,
// unit word, singular or plural ("2 hours 30 minutes").
var (
	compactPattern  = regexp.MustCompile(`(?i)(\d+)([ywdhms])`)
	verbosePattern  = regexp.MustCompile(`(?i)(\d+)\s+(years?|weeks?|days?|hours?|minutes?|seconds?)`)
	absolutePattern = regexp.MustCompile(`(?i)^\d{4}-\d{2}-\d{2} \d{2}:\d{2} (AM|PM)$`)
)

// components accumulates matched unit values. Repeated matches for the same
// unit are summed.
type components struct {
	years, weeks, days, hours, minutes, seconds int
	matched                                     bool
}

func (c *components) add(unit string, value int) {
	c.matched = true
	switch unit {
	case "y":
		c.years += value
	case "w":
		c.weeks += value
	case "d":
		c.days += value
	case "h":
		c.hours += value
	case "m":
		c.minutes += value
	case "s":
		c.seconds += value
	}
}

// ParseRelative resolves a relative expression against now. Year arithmetic is
// calendar based; a year-add landing on an invalid date (leap-day overflow)
// rolls forward to the first day of the following month, which matches Go's
// AddDate normalization.
func ParseRelative(input string, now time.Time) (time.Time, error) {
	c, err := parseComponents(input)
	if err != nil {
		return time.Time{}, err
	}

	result := now.AddDate(c.years, 0, c.weeks*7+c.days)
	result = result.Add(
		time.Duration(c.hours)*time.Hour +
			time.Duration(c.minutes)*time.Minute +
			time.Duration(c.seconds)*time.Second)

	return result.UTC(), nil
}

// ParseDuration resolves a relative expression into an elapsed duration. Weeks
// and days are treated as fixed 24-hour multiples; year units are rejected
// since an event duration has no calendar anchor.
func ParseDuration(input string) (time.Duration, error) {
	c, err := parseComponents(input)
	if err != nil {
		return 0, err
	}
	if c.years > 0 {
		return 0, ErrUnparsable
	}

	return time.Duration(c.weeks*7+c.days)*24*time.Hour +
		time.Duration(c.hours)*time.Hour +
		time.Duration(c.minutes)*time.Minute +
		time.Duration(c.seconds)*time.Second, nil
}

func parseComponents(input string) (components, error) {
	var c components
	input = strings.TrimSpace(input)
	if input == "" {
		return c, ErrUnparsable
	}

	// Strip verbose matches first so their digits are not re-consumed by the
	// compact pattern (the unit word starts with a compact unit letter).
	remainder := verbosePattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := verbosePattern.FindStringSubmatch(match)
		value, err := strconv.Atoi(parts[1])
		if err != nil {
			return ""
		}
		c.add(strings.ToLower(parts[2][:1]), value)
		return ""
	})

	for _, parts := range compactPattern.FindAllStringSubmatch(remainder, -1) {
		value, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		c.add(strings.ToLower(parts[2]), value)
	}

	if !c.matched {
		return c, ErrUnparsable
	}

	return c, nil
}

// ParseAbsolute resolves a strict absolute expression in the given zone and
// returns the instant in UTC. A nil zone means UTC. Any deviation from
// AbsoluteLayout fails with ErrBadFormat.
func ParseAbsolute(input string, zone *time.Location) (time.Time, error) {
	if zone == nil {
		zone = time.UTC
	}

	input = strings.TrimSpace(input)
	if !absolutePattern.MatchString(input) {
		return time.Time{}, ErrBadFormat
	}

	parsed, err := time.ParseInLocation(AbsoluteLayout, strings.ToUpper(input), zone)
	if err != nil {
		return time.Time{}, ErrBadFormat
	}

	return parsed.UTC(), nil
}

// FormatAbsolute renders an instant in the accepted pattern for the given
// zone. It is used both for display and for the ErrBadFormat example text.
func FormatAbsolute(t time.Time, zone *time.Location) string {
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Format(AbsoluteLayout)
}

// LoadZone resolves an IANA timezone name. The names "none" and the empty
// string report ok=false, which callers treat as a request to clear the
// preference; an unrecognized name does the same rather than erroring.
func LoadZone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "none") {
		return nil, false
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}

	return loc, true
}
