package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A Saturday, matching the anchor weekday terms start on.
var termStart = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

func TestSlotDate(t *testing.T) {
	require.Equal(t, time.Saturday, termStart.Weekday())

	tests := []struct {
		name    string
		week    int
		weekday int
		days    int
	}{
		{"week 1 saturday is the term start", 1, 6, 0},
		{"week 1 sunday", 1, 0, 1},
		{"week 1 friday is the last day of the week", 1, 5, 6},
		{"week 2 monday", 2, 1, 9},
		{"week 3 wednesday", 3, 3, 18},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SlotDate(termStart, tc.week, tc.weekday)
			assert.Equal(t, termStart.AddDate(0, 0, tc.days), got)
		})
	}
}

func TestResolveSlotSchoolTerm(t *testing.T) {
	slot, err := ResolveSlot(KindSchoolTerm, termStart, 2, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, termStart.AddDate(0, 0, 9), slot.Date)
	assert.Equal(t, "16:00", slot.Start)
	assert.Equal(t, "18:30", slot.End)

	slot, err = ResolveSlot(KindSchoolTerm, termStart, 2, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "18:30", slot.Start)
	assert.Equal(t, "21:00", slot.End)
}

func TestResolveSlotHoliday(t *testing.T) {
	slot, err := ResolveSlot(KindHoliday, termStart, 1, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, termStart, slot.Date)
	assert.Equal(t, "09:00", slot.Start)
	assert.Equal(t, "12:00", slot.End)

	slot, err = ResolveSlot(KindHoliday, termStart, 1, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, "12:30", slot.Start)
	assert.Equal(t, "15:30", slot.End)
}

func TestResolveSlotDeterministic(t *testing.T) {
	first, err := ResolveSlot(KindSchoolTerm, termStart, 4, 3, 1)
	require.NoError(t, err)
	second, err := ResolveSlot(KindSchoolTerm, termStart, 4, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSlotInvalidInput(t *testing.T) {
	_, err := ResolveSlot(KindSchoolTerm, termStart, 1, 1, 2)
	assert.Error(t, err)

	_, err = ResolveSlot(KindSchoolTerm, termStart, 1, 1, -1)
	assert.Error(t, err)

	_, err = ResolveSlot(KindSchoolTerm, termStart, 0, 1, 0)
	assert.Error(t, err)

	_, err = ResolveSlot(KindSchoolTerm, termStart, 1, 7, 0)
	assert.Error(t, err)

	_, err = ResolveSlot(TermKind("weekend"), termStart, 1, 1, 0)
	assert.Error(t, err)
}

func TestWeekOf(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"first day", termStart, 1},
		{"end of week one", termStart.AddDate(0, 0, 6), 1},
		{"start of week two", termStart.AddDate(0, 0, 7), 2},
		{"mid term", termStart.AddDate(0, 0, 30), 5},
		{"before term clamps to one", termStart.AddDate(0, 0, -10), 1},
		{"after term clamps to weeks", termStart.AddDate(0, 0, 200), 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WeekOf(termStart, 10, tc.now))
		})
	}
}
