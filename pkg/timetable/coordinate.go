package timetable

import (
	"fmt"
	"time"
)

// TermKind distinguishes the two timetable regimes a term can run under.
type TermKind string

const (
	KindSchoolTerm TermKind = "school_term"
	KindHoliday    TermKind = "holiday"
)

// Window is a fixed start/end clock pair for a detention slot.
type Window struct {
	Start string
	End   string
}

// Detention windows per term kind, indexed by slot number.
var slotWindows = map[TermKind][]Window{
	KindSchoolTerm: {
		{Start: "16:00", End: "18:30"},
		{Start: "18:30", End: "21:00"},
	},
	KindHoliday: {
		{Start: "09:00", End: "12:00"},
		{Start: "12:30", End: "15:30"},
	},
}

// SlotTime is the resolved identity of a detention slot coordinate.
type SlotTime struct {
	Date  time.Time
	Start string
	End   string
}

// SlotDate maps a (week, weekday) coordinate onto an absolute date.
// Term weeks are anchored to Saturday: a term starts on a Saturday and
// the weekday index (0=Sunday..6=Saturday) is converted to an offset from
// that anchor, so Saturday is day 0 of its week and Friday day 6.
func SlotDate(termStart time.Time, week, weekday int) time.Time {
	dayOffset := (weekday + 1) % 7
	days := (week-1)*7 + dayOffset
	return termStart.AddDate(0, 0, days)
}

// ResolveSlot converts a (term kind, term start, week, weekday, slot number)
// coordinate into its date and time window. The mapping is pure: identical
// coordinates always resolve to the identical slot identity.
func ResolveSlot(kind TermKind, termStart time.Time, week, weekday, slotNumber int) (SlotTime, error) {
	if week < 1 {
		return SlotTime{}, fmt.Errorf("week must be >= 1, got %d", week)
	}
	if weekday < 0 || weekday > 6 {
		return SlotTime{}, fmt.Errorf("weekday must be in [0,6], got %d", weekday)
	}
	windows, ok := slotWindows[kind]
	if !ok {
		return SlotTime{}, fmt.Errorf("unknown term kind %q", kind)
	}
	if slotNumber < 0 || slotNumber >= len(windows) {
		return SlotTime{}, fmt.Errorf("invalid slot number %d for term kind %q", slotNumber, kind)
	}
	window := windows[slotNumber]
	return SlotTime{
		Date:  SlotDate(termStart, week, weekday),
		Start: window.Start,
		End:   window.End,
	}, nil
}

// SlotsPerDay returns how many detention windows exist per day for a kind.
func SlotsPerDay(kind TermKind) int {
	return len(slotWindows[kind])
}

// WeekOf computes the 1-based week number of now within a term,
// clamped to [1, weeks].
func WeekOf(termStart time.Time, weeks int, now time.Time) int {
	days := int(now.Sub(termStart).Hours() / 24)
	week := days/7 + 1
	if week < 1 {
		week = 1
	}
	if weeks >= 1 && week > weeks {
		week = weeks
	}
	return week
}
