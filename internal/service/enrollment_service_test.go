package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
)

type enrollmentStoreMock struct {
	enrollments map[string]*models.Enrollment
	active      *models.Enrollment
	createErr   error
	renewErr    error

	created         *models.Enrollment
	createdSessions []models.Session
	paymentUpdates  []models.PaymentStatus
}

func (m *enrollmentStoreMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *enrollmentStoreMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *enrollmentStoreMock) FindActiveForSlot(ctx context.Context, studentID string, weeklyDay time.Weekday, timeSlot, location string) (*models.Enrollment, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *enrollmentStoreMock) CreateWithSessions(ctx context.Context, enrollment *models.Enrollment, sessions []models.Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = "enr-new"
	m.created = enrollment
	m.createdSessions = sessions
	return nil
}

func (m *enrollmentStoreMock) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	m.paymentUpdates = append(m.paymentUpdates, status)
	return nil
}

func (m *enrollmentStoreMock) CreateRenewal(ctx context.Context, predecessorID string, successor *models.Enrollment, sessions []models.Session) error {
	if m.renewErr != nil {
		return m.renewErr
	}
	successor.ID = "enr-successor"
	m.created = successor
	m.createdSessions = sessions
	return nil
}

type conflictFinderMock struct {
	conflicts map[string][]models.Session
	calls     int
}

func (m *conflictFinderMock) FindConflicts(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeEnrollmentID string) ([]models.Session, error) {
	m.calls++
	return m.conflicts[date.Format("2006-01-02")], nil
}

type calendarProviderStub struct {
	calendar  *Calendar
	spanWeeks int
}

func (s *calendarProviderStub) CalendarFrom(ctx context.Context, start time.Time) (*Calendar, error) {
	return s.calendar, nil
}

func (s *calendarProviderStub) CalendarSpanning(ctx context.Context, start time.Time, weeks int) (*Calendar, error) {
	s.spanWeeks = weeks
	return s.calendar, nil
}

func validCreateRequest() CreateEnrollmentRequest {
	return CreateEnrollmentRequest{
		StudentID:   "stu-1",
		TutorID:     "tut-1",
		Kind:        "REGULAR",
		WeeklyDay:   1,
		TimeSlot:    "16:45",
		Location:    "room-a",
		StartDate:   "2025-02-03",
		LessonsPaid: 4,
	}
}

func TestEnrollmentServiceCreateExpandsAroundHolidays(t *testing.T) {
	store := &enrollmentStoreMock{}
	sessions := &conflictFinderMock{}
	calendars := &calendarProviderStub{calendar: calendarOf(t, "2025-02-17")}
	svc := NewEnrollmentService(store, sessions, calendars, nil, nil)

	result, err := svc.Create(context.Background(), validCreateRequest(), "admin-1")
	require.NoError(t, err)

	require.Len(t, result.Sessions, 4)
	assert.Equal(t, "2025-03-03", result.Sessions[3].Date.Format("2006-01-02"))
	assert.Equal(t, models.SessionStatusScheduled, result.Sessions[0].Status)
	assert.Equal(t, models.PaymentStatusPending, result.Enrollment.PaymentStatus)
	assert.Equal(t, "admin-1", result.Enrollment.CreatedBy)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "2025-02-17")
	assert.Equal(t, 4, sessions.calls)
}

func TestEnrollmentServiceCreatePreloadsCalendarForLessonCount(t *testing.T) {
	calendars := &calendarProviderStub{calendar: NewCalendar(nil)}
	svc := NewEnrollmentService(&enrollmentStoreMock{}, &conflictFinderMock{}, calendars, nil, nil)

	req := validCreateRequest()
	req.LessonsPaid = 150

	_, err := svc.Create(context.Background(), req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 150, calendars.spanWeeks)
}

func TestEnrollmentServiceCreateTrialSingleSession(t *testing.T) {
	store := &enrollmentStoreMock{}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	req := validCreateRequest()
	req.Kind = "TRIAL"
	req.LessonsPaid = 6

	result, err := svc.Create(context.Background(), req, "admin-1")
	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, models.SessionStatusTrialClass, result.Sessions[0].Status)
	assert.Equal(t, 6, result.Enrollment.LessonsPaid)
}

func TestEnrollmentServiceCreateConflictBlocks(t *testing.T) {
	sessions := &conflictFinderMock{conflicts: map[string][]models.Session{
		"2025-02-10": {{ID: "ses-existing"}},
	}}
	svc := NewEnrollmentService(&enrollmentStoreMock{}, sessions, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	_, err := svc.Create(context.Background(), validCreateRequest(), "admin-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflictDetected.Code, appErr.Code)
	assert.Equal(t, []string{"ses-existing"}, appErr.Details["colliding_session_ids"])
}

func TestEnrollmentServiceCreateInvalidPayload(t *testing.T) {
	svc := NewEnrollmentService(&enrollmentStoreMock{}, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	req := validCreateRequest()
	req.LessonsPaid = 0
	_, err := svc.Create(context.Background(), req, "admin-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentServicePreviewWritesNothing(t *testing.T) {
	store := &enrollmentStoreMock{}
	sessions := &conflictFinderMock{conflicts: map[string][]models.Session{
		"2025-02-03": {{ID: "ses-existing"}},
	}}
	svc := NewEnrollmentService(store, sessions, &calendarProviderStub{calendar: calendarOf(t, "2025-02-17")}, nil, nil)

	result, err := svc.Preview(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Nil(t, store.created)
	require.Len(t, result.Planned, 4)
	assert.Equal(t, "2025-03-03", result.EffectiveEndDate.Format("2006-01-02"))
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "ses-existing", result.Conflicts[0].ID)
	assert.NotEmpty(t, result.Warnings)
}

func TestEnrollmentServiceConfirmPayment(t *testing.T) {
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", PaymentStatus: models.PaymentStatusPending},
	}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	enrollment, err := svc.ConfirmPayment(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, enrollment.PaymentStatus)
	assert.Equal(t, []models.PaymentStatus{models.PaymentStatusPaid}, store.paymentUpdates)
}

func TestEnrollmentServiceConfirmPaymentAlreadyPaid(t *testing.T) {
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", PaymentStatus: models.PaymentStatusPaid},
	}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	_, err := svc.ConfirmPayment(context.Background(), "enr-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestEnrollmentServiceCancelFreesSlot(t *testing.T) {
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", PaymentStatus: models.PaymentStatusPaid},
	}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	enrollment, err := svc.Cancel(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, enrollment.PaymentStatus)

	store.enrollments["enr-1"].PaymentStatus = models.PaymentStatusCancelled
	_, err = svc.Cancel(context.Background(), "enr-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestEnrollmentServiceRenewLinksChain(t *testing.T) {
	predecessor := &models.Enrollment{
		ID:            "enr-1",
		StudentID:     "stu-1",
		TutorID:       "tut-1",
		Kind:          models.EnrollmentKindRegular,
		WeeklyDay:     time.Monday,
		TimeSlot:      "16:45",
		Location:      "room-a",
		PaymentStatus: models.PaymentStatusPaid,
	}
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{"enr-1": predecessor}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	result, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{
		StartDate:   "2025-05-05",
		LessonsPaid: 8,
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "stu-1", result.Enrollment.StudentID)
	assert.Equal(t, time.Monday, result.Enrollment.WeeklyDay)
	assert.Equal(t, models.EnrollmentKindRegular, result.Enrollment.Kind)
	require.Len(t, result.Sessions, 8)
	assert.Equal(t, "2025-05-05", result.Sessions[0].Date.Format("2006-01-02"))
}

func TestEnrollmentServiceRenewAlreadyRenewed(t *testing.T) {
	successorID := "enr-2"
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{
		"enr-1": {
			ID: "enr-1", Kind: models.EnrollmentKindRegular,
			PaymentStatus: models.PaymentStatusPaid, RenewedToID: &successorID,
		},
	}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{StartDate: "2025-05-05", LessonsPaid: 8}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceRenewRacesToConflict(t *testing.T) {
	store := &enrollmentStoreMock{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", Kind: models.EnrollmentKindRegular, PaymentStatus: models.PaymentStatusPaid},
		},
		renewErr: repository.ErrAlreadyRenewed,
	}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{StartDate: "2025-05-05", LessonsPaid: 8}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.True(t, errors.Is(store.renewErr, repository.ErrAlreadyRenewed))
}

func TestEnrollmentServiceRenewNonRegularRejected(t *testing.T) {
	store := &enrollmentStoreMock{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", Kind: models.EnrollmentKindTrial, PaymentStatus: models.PaymentStatusPaid},
	}}
	svc := NewEnrollmentService(store, &conflictFinderMock{}, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{StartDate: "2025-05-05", LessonsPaid: 8}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
