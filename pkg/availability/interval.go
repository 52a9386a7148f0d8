package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is a half-open time range within one day, in minutes since
// midnight. The exclusive end lets back-to-back bookings share a boundary
// without conflicting.
type Interval struct {
	Start int
	End   int
}

// NewInterval builds an interval from an HH:MM start and a duration in
// minutes
func NewInterval(startTime string, durationMinutes int) (Interval, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Interval{}, err
	}
	if durationMinutes <= 0 {
		return Interval{}, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	return Interval{Start: start, End: start + durationMinutes}, nil
}

// Overlaps reports whether two half-open intervals intersect
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// ParseClock converts an HH:MM string to minutes since midnight
func ParseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}

	return hours*60 + minutes, nil
}
