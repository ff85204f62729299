package ratewindow

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// unitSeconds maps the accepted unit spellings to their length in seconds.
var unitSeconds = map[string]int64{
	"s": 1, "sec": 1, "second": 1, "seconds": 1,
	"m": 60, "min": 60, "minute": 60, "minutes": 60,
	"h": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
}

// ParseDurationSpec converts a human-readable duration spec into a duration.
// The grammar is one or more "<int><unit>" pairs, case-insensitive, with
// optional whitespace between value and unit and between pairs; the pairs
// are summed ("5min 30sec" is 330 seconds). Unrecognized units or stray
// input fail the parse instead of being ignored.
func ParseDurationSpec(spec string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return 0, fmt.Errorf("empty duration spec")
	}

	var totalSeconds int64
	i := 0
	pairs := 0
	for i < len(s) {
		// skip separators between pairs
		for i < len(s) && unicode.IsSpace(rune(s[i])) {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("duration spec %q: expected a number at offset %d", spec, start)
		}
		var value int64
		for _, c := range s[start:i] {
			value = value*10 + int64(c-'0')
		}

		for i < len(s) && unicode.IsSpace(rune(s[i])) {
			i++
		}
		unitStart := i
		for i < len(s) && s[i] >= 'a' && s[i] <= 'z' {
			i++
		}
		unit := s[unitStart:i]
		if unit == "" {
			return 0, fmt.Errorf("duration spec %q: missing unit after %d", spec, value)
		}
		mult, ok := unitSeconds[unit]
		if !ok {
			return 0, fmt.Errorf("duration spec %q: unknown unit %q", spec, unit)
		}

		totalSeconds += value * mult
		pairs++
	}

	if pairs == 0 {
		return 0, fmt.Errorf("duration spec %q contains no value/unit pairs", spec)
	}
	return time.Duration(totalSeconds) * time.Second, nil
}
