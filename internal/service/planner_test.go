package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	require.NoError(t, err)
	return date
}

func calendarOf(t *testing.T, dates ...string) *Calendar {
	t.Helper()
	parsed := make([]time.Time, len(dates))
	for i, d := range dates {
		parsed[i] = mustDate(t, d)
	}
	return NewCalendar(parsed)
}

func TestGenerateSessionsSkipsHolidayWeek(t *testing.T) {
	calendar := calendarOf(t, "2025-02-17")
	start := mustDate(t, "2025-02-03")

	planned, err := GenerateSessions(calendar, start, time.Monday, 4)
	require.NoError(t, err)
	require.Len(t, planned, 4)

	dates := make([]string, len(planned))
	for i, p := range planned {
		dates[i] = p.Date.Format("2006-01-02")
	}
	assert.Equal(t, []string{"2025-02-03", "2025-02-10", "2025-02-24", "2025-03-03"}, dates)

	assert.False(t, planned[1].Deferred)
	assert.True(t, planned[2].Deferred)
	require.NotNil(t, planned[2].DeferredFrom)
	assert.Equal(t, "2025-02-17", planned[2].DeferredFrom.Format("2006-01-02"))
	assert.False(t, planned[3].Deferred)
}

func TestGenerateSessionsEmptyCalendar(t *testing.T) {
	start := mustDate(t, "2025-02-03")

	planned, err := GenerateSessions(NewCalendar(nil), start, time.Monday, 3)
	require.NoError(t, err)
	require.Len(t, planned, 3)
	for i, p := range planned {
		assert.Equal(t, start.AddDate(0, 0, 7*i), p.Date)
		assert.False(t, p.Deferred)
	}
}

func TestGenerateSessionsStartNotOnWeeklyDay(t *testing.T) {
	// Wednesday start, Friday lessons: first session is the following Friday.
	start := mustDate(t, "2025-01-01")

	planned, err := GenerateSessions(NewCalendar(nil), start, time.Friday, 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", planned[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2025-01-10", planned[1].Date.Format("2006-01-02"))
}

func TestGenerateSessionsConsecutiveHolidays(t *testing.T) {
	calendar := calendarOf(t, "2025-02-10", "2025-02-17")
	start := mustDate(t, "2025-02-03")

	planned, err := GenerateSessions(calendar, start, time.Monday, 3)
	require.NoError(t, err)
	require.Len(t, planned, 3)
	assert.Equal(t, "2025-02-24", planned[1].Date.Format("2006-01-02"))
	require.NotNil(t, planned[1].DeferredFrom)
	assert.Equal(t, "2025-02-10", planned[1].DeferredFrom.Format("2006-01-02"))
}

func TestGenerateSessionsNoHolidayDates(t *testing.T) {
	calendar := calendarOf(t, "2025-02-17", "2025-03-24")
	start := mustDate(t, "2025-02-03")

	planned, err := GenerateSessions(calendar, start, time.Monday, 10)
	require.NoError(t, err)
	for _, p := range planned {
		assert.False(t, calendar.IsHoliday(p.Date), "generated date %s must not be a holiday", p.Date.Format("2006-01-02"))
	}
}

func TestGenerateSessionsRejectsZeroCount(t *testing.T) {
	_, err := GenerateSessions(NewCalendar(nil), mustDate(t, "2025-02-03"), time.Monday, 0)
	require.Error(t, err)
}

func TestEffectiveEndDateMatchesLastGenerated(t *testing.T) {
	calendar := calendarOf(t, "2025-01-15", "2025-02-12")
	start := mustDate(t, "2025-01-01")

	planned, err := GenerateSessions(calendar, start, time.Wednesday, 12)
	require.NoError(t, err)
	end, err := EffectiveEndDate(calendar, start, time.Wednesday, 12)
	require.NoError(t, err)
	assert.Equal(t, planned[len(planned)-1].Date, end)
}

func TestEffectiveEndDateExtensionMonotonic(t *testing.T) {
	calendar := calendarOf(t, "2025-01-15")
	start := mustDate(t, "2025-01-01")

	base, err := EffectiveEndDate(calendar, start, time.Wednesday, 12)
	require.NoError(t, err)
	extended, err := EffectiveEndDate(calendar, start, time.Wednesday, 14)
	require.NoError(t, err)

	assert.True(t, extended.After(base))
	// Two extra weeks mean exactly two more valid Wednesdays.
	assert.Equal(t, base.AddDate(0, 0, 14), extended)
}

func TestEffectiveEndDateZeroExtensionIsNoOp(t *testing.T) {
	calendar := calendarOf(t, "2025-03-05")
	start := mustDate(t, "2025-01-01")

	a, err := EffectiveEndDate(calendar, start, time.Wednesday, 8)
	require.NoError(t, err)
	b, err := EffectiveEndDate(calendar, start, time.Wednesday, 8+0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateSessionsBoundsPathologicalCalendar(t *testing.T) {
	everyDay := holidayFunc(func(time.Time) bool { return true })
	_, err := GenerateSessions(everyDay, mustDate(t, "2025-02-03"), time.Monday, 1)
	require.Error(t, err)
}

type holidayFunc func(time.Time) bool

func (f holidayFunc) IsHoliday(date time.Time) bool { return f(date) }
