package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds valid clock values.
const MinutesPerDay = 24 * 60

// ParseClock converts an "HH:MM" string into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in clock value %q", value)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Range is a half-open [Start, End) interval in minutes since midnight.
type Range struct {
	Start int
	End   int
}

// NewRange builds a Range from a clock start and a duration in minutes.
func NewRange(startClock string, durationMinutes int) (Range, error) {
	start, err := ParseClock(startClock)
	if err != nil {
		return Range{}, err
	}
	if durationMinutes <= 0 {
		return Range{}, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	return Range{Start: start, End: start + durationMinutes}, nil
}

// Overlaps reports whether two half-open ranges intersect.
// Touching ranges (r.End == other.Start) do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && r.End > other.Start
}
