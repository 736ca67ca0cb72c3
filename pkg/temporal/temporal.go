// Package temporal reads and writes dates and times at a fixed granularity.
//
// Values are time.Time. Fields finer or coarser than the granularity are
// zeroed by Normalize: a Date is midnight UTC, a Time is on 0000-01-01 UTC, a
// YearMonth is the first of the month. Only DateTimeZoned keeps a location.
//
// Years outside 0000-9999 are written with as many digits as they need and a
// leading minus sign when negative, and are read back the same way.
package temporal

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
)

var layouts = map[datatype.Granularity][]string{
	datatype.Date:      {"2006-01-02", "2006/01/02", "2006-1-2"},
	datatype.Time:      {"15:04:05.999999999", "15:04"},
	datatype.YearMonth: {"2006-01", "2006/01", "2006-1"},
	datatype.DateTime: {
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
	},
}

// offsetLayouts read a date-time with its UTC offset attached, as written
// before the zone name of a named-zone value.
var offsetLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07:00:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00:00",
}

var canonical = map[datatype.Granularity]string{
	datatype.Date:          "2006-01-02",
	datatype.Time:          "15:04:05.999999999",
	datatype.YearMonth:     "2006-01",
	datatype.DateTime:      "2006-01-02 15:04:05.999999999",
	datatype.DateTimeZoned: "2006-01-02 15:04:05.999999999",
}

// Parse reads text as a value of granularity g. Surrounding whitespace is ignored.
func Parse(text string, g datatype.Granularity) (time.Time, error) {
	s := strings.TrimSpace(text)
	if g == datatype.DateTimeZoned {
		return parseZoned(s, text)
	}
	candidates, ok := layouts[g]
	if !ok {
		return time.Time{}, errors.Internal("temporal: no layouts for granularity %s", g)
	}
	if t, ok := parseLayouts(s, candidates, time.UTC); ok {
		return Normalize(t, g), nil
	}
	return time.Time{}, errors.Data("not a valid "+g.String(), s, g.String(), text)
}

// parseLayouts tries each layout in turn. A year that time.Parse cannot read
// (signed, or wider than four digits) is swapped for a leap year before
// parsing and put back afterwards.
func parseLayouts(s string, candidates []string, loc *time.Location) (time.Time, bool) {
	year, rest, wide := splitYear(s)
	if wide {
		s = "2000" + rest
	}
	for _, layout := range candidates {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if !wide {
			return t, true
		}
		moved := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
		if moved.Month() != t.Month() || moved.Day() != t.Day() {
			// February 29 in a common year.
			return time.Time{}, false
		}
		return moved, true
	}
	return time.Time{}, false
}

// splitYear cuts a signed or more-than-four-digit year off the front of s.
// Plain four-digit years are left for time.Parse.
func splitYear(s string) (int, string, bool) {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	digits := i - start
	if digits < 4 || digits > 9 || i == len(s) || (s[i] != '-' && s[i] != '/') {
		return 0, "", false
	}
	if start == 0 && digits == 4 {
		return 0, "", false
	}
	year, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", false
	}
	return year, s[i:], true
}

// parseZoned reads a date-time followed by an offset or an IANA zone name.
// A named zone may be preceded by the offset in effect, which picks between
// the two instants of an hour repeated at a daylight-saving change.
func parseZoned(s, original string) (time.Time, error) {
	fail := errors.Data("not a valid "+datatype.DateTimeZoned.String(), s, datatype.DateTimeZoned.String(), original)

	local, zone, found := cutLastField(s)
	if !found {
		// Forms like 2006-01-02T15:04:05Z07:00 carry the offset without a space.
		if t, ok := parseLayouts(s, []string{time.RFC3339Nano}, time.UTC); ok {
			return t, nil
		}
		return time.Time{}, fail
	}

	var loc *time.Location
	switch {
	case zone == "Z" || zone == "UTC":
		loc = time.UTC
	case zone[0] == '+' || zone[0] == '-':
		secs, ok := parseOffset(zone)
		if !ok {
			return time.Time{}, fail
		}
		loc = time.FixedZone("", secs)
	default:
		named, err := loadLocation(zone)
		if err != nil {
			return time.Time{}, fail
		}
		loc = named
	}

	if t, ok := parseLayouts(local, offsetLayouts, time.UTC); ok {
		_, want := t.Zone()
		t = t.In(loc)
		if _, got := t.Zone(); got != want {
			return time.Time{}, fail
		}
		return t, nil
	}
	if t, ok := parseLayouts(local, layouts[datatype.DateTime], loc); ok {
		return t, nil
	}
	return time.Time{}, fail
}

func parseOffset(zone string) (int, bool) {
	for _, layout := range []string{"-07:00", "-07:00:00", "-0700"} {
		if offset, err := time.Parse(layout, zone); err == nil {
			_, secs := offset.Zone()
			return secs, true
		}
	}
	return 0, false
}

// locations caches loaded zones by name so that values in the same zone share
// one *time.Location. Only names found in the zone database are stored.
var locations sync.Map

func loadLocation(name string) (*time.Location, error) {
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	actual, _ := locations.LoadOrStore(name, loc)
	return actual.(*time.Location), nil
}

// cutLastField splits s at its last space when that leaves a date-time on the left.
func cutLastField(s string) (string, string, bool) {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 || strings.Count(s[:i], " ") > 1 || !strings.Contains(s[:i], ":") {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), s[i+1:], true
}

// Normalize zeroes the fields of t that granularity g does not carry.
func Normalize(t time.Time, g datatype.Granularity) time.Time {
	switch g {
	case datatype.Date:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case datatype.Time:
		return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	case datatype.YearMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case datatype.DateTime:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	default:
		return t
	}
}

// Format writes t in the canonical layout of g. Zoned values end with the
// numeric offset for fixed zones, or with the offset in effect followed by the
// IANA zone name.
func Format(t time.Time, g datatype.Granularity) string {
	layout, ok := canonical[g]
	if !ok {
		return t.Format(time.RFC3339Nano)
	}
	if g != datatype.DateTimeZoned {
		return Normalize(t, g).Format(layout)
	}
	loc := t.Location()
	if loc == time.UTC {
		return t.Format(layout) + " UTC"
	}
	name := loc.String()
	if name != "" && name != "Local" && strings.Contains(name, "/") {
		return t.Format(layout) + offsetText(t) + " " + name
	}
	return t.Format(layout) + " " + offsetText(t)
}

func offsetText(t time.Time) string {
	if _, secs := t.Zone(); secs%60 != 0 {
		return t.Format("-07:00:00")
	}
	return t.Format("-07:00")
}
