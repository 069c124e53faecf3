package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxHours keeps every accepted offset within time.Duration.
const maxHours = math.MaxInt64 / int64(time.Hour)

// ParseTimestamp parses an offset from the start of a recording in
// HH:MM:SS[.fff] form. MM:SS[.fff] is also accepted.
func ParseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	var hours, minutes int64
	var err error
	if len(parts) == 3 {
		if hours, err = parseUnit(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: hours: %w", s, err)
		}
		if hours >= maxHours {
			return 0, fmt.Errorf("invalid timestamp %q: hours out of range", s)
		}
		parts = parts[1:]
	}
	if minutes, err = parseUnit(parts[0]); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: minutes: %w", s, err)
	}

	secPart, fracPart, hasFrac := strings.Cut(parts[1], ".")
	seconds, err := parseUnit(secPart)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: seconds: %w", s, err)
	}
	if minutes >= 60 || seconds >= 60 {
		return 0, fmt.Errorf("invalid timestamp %q: field out of range", s)
	}

	var nanos int64
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 {
			return 0, fmt.Errorf("invalid timestamp %q: fraction", s)
		}
		n, err := parseUnit(fracPart)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: fraction: %w", s, err)
		}
		for i := len(fracPart); i < 9; i++ {
			n *= 10
		}
		nanos = n
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(nanos)
	return d, nil
}

// FormatTimestamp renders d as HH:MM:SS.fff. Sub-millisecond precision is
// kept when present.
func FormatTimestamp(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	nanos := int64(d - seconds*time.Second)

	if nanos%int64(time.Millisecond) == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, nanos/int64(time.Millisecond))
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", nanos), "0")
	return fmt.Sprintf("%s%02d:%02d:%02d.%s", sign, hours, minutes, seconds, frac)
}

func parseUnit(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
