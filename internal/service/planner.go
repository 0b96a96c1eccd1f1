package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// HolidayChecker answers whether a date is blacked out. An empty calendar is
// valid.
type HolidayChecker interface {
	IsHoliday(date time.Time) bool
}

// maxPlanningIterations bounds the weekly walk so a pathological calendar
// (every week a holiday) cannot loop forever.
const maxPlanningIterations = 1000

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// nextWeekday returns the first occurrence of day on or after start.
func nextWeekday(start time.Time, day time.Weekday) time.Time {
	start = DateOnly(start)
	offset := (int(day) - int(start.Weekday()) + 7) % 7
	return start.AddDate(0, 0, offset)
}

// GenerateSessions expands (start date, weekly day, lesson count) into
// concrete dates. Holiday weeks are skipped by deferral: they extend the
// calendar span but never consume a paid lesson, so the result always holds
// exactly count non-holiday dates.
func GenerateSessions(calendar HolidayChecker, start time.Time, day time.Weekday, count int) ([]models.PlannedSession, error) {
	if count < 1 {
		return nil, fmt.Errorf("lesson count must be at least 1, got %d", count)
	}

	planned := make([]models.PlannedSession, 0, count)
	candidate := nextWeekday(start, day)
	var deferredFrom *time.Time

	for i := 0; len(planned) < count; i++ {
		if i >= maxPlanningIterations {
			return nil, fmt.Errorf("no valid lesson dates within %d weeks of %s", maxPlanningIterations, start.Format("2006-01-02"))
		}
		if calendar.IsHoliday(candidate) {
			if deferredFrom == nil {
				skipped := candidate
				deferredFrom = &skipped
			}
			candidate = candidate.AddDate(0, 0, 7)
			continue
		}
		planned = append(planned, models.PlannedSession{
			Date:         candidate,
			Deferred:     deferredFrom != nil,
			DeferredFrom: deferredFrom,
		})
		deferredFrom = nil
		candidate = candidate.AddDate(0, 0, 7)
	}
	return planned, nil
}

// EffectiveEndDate computes the date of the totalWeeks-th non-holiday weekly
// occurrence from start. Both the original and the extended deadline use this
// same walk, so extension weeks are always interpreted as additional valid
// lesson slots rather than raw calendar days.
func EffectiveEndDate(calendar HolidayChecker, start time.Time, day time.Weekday, totalWeeks int) (time.Time, error) {
	planned, err := GenerateSessions(calendar, start, day, totalWeeks)
	if err != nil {
		return time.Time{}, err
	}
	return planned[len(planned)-1].Date, nil
}
