package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	"github.com/noah-isme/tutoring-center-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
)

type renewalStoreMock struct {
	enrollments []models.Enrollment
	counts      map[string]repository.SessionCounts
	payments    map[string]models.PaymentStatus
	listCalls   int
}

func (m *renewalStoreMock) ListRegularPaid(ctx context.Context) ([]models.Enrollment, error) {
	m.listCalls++
	return m.enrollments, nil
}

func (m *renewalStoreMock) CountsByEnrollments(ctx context.Context, ids []string) (map[string]repository.SessionCounts, error) {
	return m.counts, nil
}

func (m *renewalStoreMock) PaymentStatusByIDs(ctx context.Context, ids []string) (map[string]models.PaymentStatus, error) {
	return m.payments, nil
}

type renewalCacheMock struct {
	entries map[string][]models.RenewalEntry
	sets    int
}

func (m *renewalCacheMock) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.RenewalEntry) = cached
	return nil
}

func (m *renewalCacheMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = map[string][]models.RenewalEntry{}
	}
	m.entries[key] = value.([]models.RenewalEntry)
	m.sets++
	return nil
}

func renewalEnrollment(id string, start time.Time, lessons int) models.Enrollment {
	return models.Enrollment{
		ID:            id,
		StudentID:     "stu-" + id,
		TutorID:       "tut-1",
		Kind:          models.EnrollmentKindRegular,
		WeeklyDay:     start.Weekday(),
		TimeSlot:      "16:45",
		Location:      "room-a",
		StartDate:     start,
		LessonsPaid:   lessons,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func newRenewalFixture(t *testing.T, store *renewalStoreMock, cache *renewalCacheMock) *RenewalService {
	t.Helper()
	cfg := config.RenewalsConfig{DefaultLookbackDays: 14, DefaultLookaheadDays: 14, CacheTTL: time.Minute}
	var svc *RenewalService
	if cache == nil {
		svc = NewRenewalService(store, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, cfg, nil)
	} else {
		svc = NewRenewalService(store, &calendarProviderStub{calendar: NewCalendar(nil)}, cache, cfg, nil)
	}
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestRenewalServiceReportWindowFiltering(t *testing.T) {
	// With now = 2025-03-01 and a 14-day window either side, only end dates
	// in [2025-02-15, 2025-03-15] qualify.
	store := &renewalStoreMock{
		enrollments: []models.Enrollment{
			// Ends 2025-02-24, inside the window.
			renewalEnrollment("enr-due", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 4),
			// Ends 2025-04-21, far outside.
			renewalEnrollment("enr-later", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 12),
		},
		counts: map[string]repository.SessionCounts{
			"enr-due": {EnrollmentID: "enr-due", Completed: 3, PendingMakeups: 1},
		},
	}
	svc := newRenewalFixture(t, store, nil)

	entries, err := svc.Report(context.Background(), models.RenewalWindow{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "enr-due", entries[0].EnrollmentID)
	assert.Equal(t, time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC), entries[0].EffectiveEndDate)
	assert.Equal(t, 3, entries[0].SessionsCompleted)
	assert.Equal(t, 1, entries[0].PendingMakeups)
	assert.Equal(t, models.RenewalStageNone, entries[0].Stage)
}

func TestRenewalServiceReportExtensionShiftsWindow(t *testing.T) {
	// 4 lessons from 2025-01-13 end 2025-02-03, before the window. Two
	// extension weeks push the end to 2025-02-17, inside it.
	extended := renewalEnrollment("enr-ext", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), 4)
	extended.ExtensionWeeks = 2
	store := &renewalStoreMock{
		enrollments: []models.Enrollment{extended},
		counts:      map[string]repository.SessionCounts{},
	}
	svc := newRenewalFixture(t, store, nil)

	entries, err := svc.Report(context.Background(), models.RenewalWindow{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC), entries[0].EffectiveEndDate)
}

func TestRenewalServiceReportStages(t *testing.T) {
	paidSuccessor := "enr-s1"
	unpaidSuccessor := "enr-s2"
	renewedPaid := renewalEnrollment("enr-a", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 4)
	renewedPaid.RenewedToID = &paidSuccessor
	renewedUnpaid := renewalEnrollment("enr-b", time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), 4)
	renewedUnpaid.RenewedToID = &unpaidSuccessor
	store := &renewalStoreMock{
		enrollments: []models.Enrollment{renewedPaid, renewedUnpaid},
		counts:      map[string]repository.SessionCounts{},
		payments: map[string]models.PaymentStatus{
			paidSuccessor:   models.PaymentStatusPaid,
			unpaidSuccessor: models.PaymentStatusPending,
		},
	}
	svc := newRenewalFixture(t, store, nil)

	entries, err := svc.Report(context.Background(), models.RenewalWindow{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Sorted by effective end date: enr-a ends 02-24, enr-b ends 02-25.
	assert.Equal(t, models.RenewalStagePaid, entries[0].Stage)
	assert.Equal(t, models.RenewalStageAwaitingPayment, entries[1].Stage)
	require.NotNil(t, entries[0].SuccessorID)
	assert.Equal(t, paidSuccessor, *entries[0].SuccessorID)
}

func TestRenewalServiceReportCacheRoundTrip(t *testing.T) {
	store := &renewalStoreMock{
		enrollments: []models.Enrollment{renewalEnrollment("enr-due", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 4)},
		counts:      map[string]repository.SessionCounts{},
	}
	cache := &renewalCacheMock{}
	svc := newRenewalFixture(t, store, cache)

	first, err := svc.Report(context.Background(), models.RenewalWindow{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Report(context.Background(), models.RenewalWindow{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, first, second)
}

func TestRenewalServiceExportCSV(t *testing.T) {
	start := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	store := &renewalStoreMock{
		enrollments: []models.Enrollment{renewalEnrollment("enr-due", start, 4)},
		counts: map[string]repository.SessionCounts{
			"enr-due": {EnrollmentID: "enr-due", Completed: 3, PendingMakeups: 0},
		},
	}
	svc := newRenewalFixture(t, store, nil)

	payload, contentType, err := svc.Export(context.Background(), models.RenewalWindow{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(renewalHeaders, ","), strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "enr-due")
	assert.Contains(t, lines[1], "2025-02-24")
	assert.Contains(t, lines[1], "NOT_RENEWED")
}

func TestRenewalServiceExportUnknownFormat(t *testing.T) {
	svc := newRenewalFixture(t, &renewalStoreMock{}, nil)

	_, _, err := svc.Export(context.Background(), models.RenewalWindow{}, "xlsx")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
