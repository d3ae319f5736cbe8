package resources

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCompactDuration parses the .NET-style compact duration format the
// engine uses for its refresh-interval hint: "HH:mm:ss[.f]" or
// "d.HH:mm:ss[.f]". The day-prefix and the fractional-seconds suffix are
// both optional and both delimited with '.', so disambiguation is done by
// counting segments: a leading segment with no ':' in it is a day count,
// a trailing segment after the ss component with no ':' in it is a
// fraction of a second.
func ParseCompactDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var days int
	rest := s
	if dot := strings.Index(rest, "."); dot != -1 && !strings.Contains(rest[:dot], ":") {
		d, err := strconv.Atoi(rest[:dot])
		if err != nil {
			return 0, fmt.Errorf("invalid day component in %q: %w", s, err)
		}
		days = d
		rest = rest[dot+1:]
	}

	hmsPart := rest
	var fracNanos time.Duration
	if dot := strings.LastIndex(rest, "."); dot != -1 {
		fracStr := rest[dot+1:]
		if _, err := strconv.Atoi(fracStr); err == nil {
			hmsPart = rest[:dot]
			fracNanos = fractionToNanos(fracStr)
		}
	}

	parts := strings.Split(hmsPart, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid HH:mm:ss component in %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		fracNanos
	return total, nil
}

// fractionToNanos converts a fractional-seconds digit string (e.g. "5",
// "250", "1234567") into nanoseconds, treating it as the digits after the
// decimal point regardless of how many there are.
func fractionToNanos(digits string) time.Duration {
	const width = 9 // time.Second in nanoseconds has 9 digits
	if len(digits) > width {
		digits = digits[:width]
	} else {
		digits = digits + strings.Repeat("0", width-len(digits))
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return time.Duration(n)
}
