package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
)

func uniqueViolationErr(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

type extensionStoreMock struct {
	requests      map[string]*models.ExtensionRequest
	created       *models.ExtensionRequest
	approveParams *repository.ApproveParams
	approveErr    error
	replacement   *models.Session
	rejectErr     error
}

func (m *extensionStoreMock) Create(ctx context.Context, request *models.ExtensionRequest) error {
	request.ID = "ext-new"
	request.RequestedAt = time.Now().UTC()
	m.created = request
	return nil
}

func (m *extensionStoreMock) FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return request, nil
}

func (m *extensionStoreMock) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error) {
	out := make([]models.ExtensionRequest, 0, len(m.requests))
	for _, request := range m.requests {
		out = append(out, *request)
	}
	return out, len(out), nil
}

func (m *extensionStoreMock) Approve(ctx context.Context, params repository.ApproveParams) (*models.ExtensionRequest, *models.Session, error) {
	if m.approveErr != nil {
		return nil, nil, m.approveErr
	}
	m.approveParams = &params
	request, ok := m.requests[params.RequestID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	updated := *request
	updated.Status = models.ExtensionStatusApproved
	updated.GrantedWeeks = &params.GrantedWeeks
	updated.ReviewedBy = &params.ReviewerID
	return &updated, m.replacement, nil
}

func (m *extensionStoreMock) Reject(ctx context.Context, id, reviewerID, reason string) (*models.ExtensionRequest, error) {
	if m.rejectErr != nil {
		return nil, m.rejectErr
	}
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	updated := *request
	updated.Status = models.ExtensionStatusRejected
	updated.ReviewedBy = &reviewerID
	return &updated, nil
}

type sessionReaderMock struct {
	sessions     map[string]*models.Session
	pendingCount int
	countedFor   string
}

func (m *sessionReaderMock) FindByID(ctx context.Context, id string) (*models.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *sessionReaderMock) CountByEnrollmentAndStatuses(ctx context.Context, enrollmentID string, statuses []models.SessionStatus) (int, error) {
	m.countedFor = enrollmentID
	return m.pendingCount, nil
}

type slotFinderMock struct {
	enrollments map[string]*models.Enrollment
	activeSlot  *models.Enrollment
}

func (m *slotFinderMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (m *slotFinderMock) FindActiveForSlot(ctx context.Context, studentID string, weeklyDay time.Weekday, timeSlot, location string) (*models.Enrollment, error) {
	if m.activeSlot == nil {
		return nil, sql.ErrNoRows
	}
	return m.activeSlot, nil
}

func newExtensionFixture(enrollment *models.Enrollment, session *models.Session) (*ExtensionService, *extensionStoreMock, *sessionReaderMock, *slotFinderMock) {
	store := &extensionStoreMock{requests: map[string]*models.ExtensionRequest{}}
	sessions := &sessionReaderMock{sessions: map[string]*models.Session{}, pendingCount: 1}
	finder := &slotFinderMock{enrollments: map[string]*models.Enrollment{}}
	if session != nil {
		sessions.sessions[session.ID] = session
	}
	if enrollment != nil {
		finder.enrollments[enrollment.ID] = enrollment
	}
	svc := NewExtensionService(store, sessions, finder, &calendarProviderStub{calendar: NewCalendar(nil)}, nil, nil)
	return svc, store, sessions, finder
}

func validExtensionRequest() CreateExtensionRequest {
	return CreateExtensionRequest{
		SessionID:      "ses-1",
		RequestedWeeks: 1,
		Reason:         "student was sick the whole week",
	}
}

func TestExtensionServiceCreateStandardBand(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))

	created, err := svc.Create(context.Background(), validExtensionRequest(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PolicyBandStandard, created.PolicyBand)
	assert.Empty(t, created.Warnings)
	require.NotNil(t, store.created)
	assert.Equal(t, "enr-1", store.created.EnrollmentID)
	assert.Equal(t, "enr-1", store.created.TargetEnrollmentID)
	assert.Equal(t, models.ExtensionStatusPending, store.created.Status)
	assert.Equal(t, "admin-1", store.created.RequestedBy)
}

func TestExtensionServiceCreatePolicyBandWarnings(t *testing.T) {
	svc, _, sessions, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	sessions.pendingCount = 0

	req := validExtensionRequest()
	req.RequestedWeeks = 3
	created, err := svc.Create(context.Background(), req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PolicyBandNeedsReview, created.PolicyBand)
	require.Len(t, created.Warnings, 2)
	assert.Contains(t, created.Warnings[0], "needs_review")
	assert.Contains(t, created.Warnings[1], "no pending make-up")
}

func TestExtensionServiceCreateGrantTargetFollowsRenewal(t *testing.T) {
	enrollment := regularEnrollment()
	successor := regularEnrollment()
	successor.ID = "enr-2"
	svc, store, sessions, finder := newExtensionFixture(enrollment, scheduledSession("enr-1"))
	finder.activeSlot = successor

	created, err := svc.Create(context.Background(), validExtensionRequest(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", created.Request.EnrollmentID)
	assert.Equal(t, "enr-2", created.Request.TargetEnrollmentID)
	assert.Equal(t, "enr-2", store.created.TargetEnrollmentID)
	assert.Equal(t, "enr-2", sessions.countedFor)
}

func TestExtensionServiceCreateAdHocSessionRejected(t *testing.T) {
	session := scheduledSession("enr-1")
	session.EnrollmentID = nil
	svc, _, _, _ := newExtensionFixture(regularEnrollment(), session)

	_, err := svc.Create(context.Background(), validExtensionRequest(), "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExtensionServiceCreateSessionNotFound(t *testing.T) {
	svc, _, _, _ := newExtensionFixture(regularEnrollment(), nil)

	_, err := svc.Create(context.Background(), validExtensionRequest(), "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestExtensionServiceApproveDefaultsGrantedWeeks(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	store.requests["ext-1"] = &models.ExtensionRequest{
		ID:                 "ext-1",
		SessionID:          "ses-1",
		EnrollmentID:       "enr-1",
		TargetEnrollmentID: "enr-1",
		RequestedWeeks:     2,
		Status:             models.ExtensionStatusPending,
	}

	decision, err := svc.Approve(context.Background(), "ext-1", ApproveExtensionRequest{}, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, store.approveParams)
	assert.Equal(t, 2, store.approveParams.GrantedWeeks)
	assert.Contains(t, store.approveParams.AuditNote, "+2w granted by admin-1")
	assert.Equal(t, models.ExtensionStatusApproved, decision.Request.Status)
	assert.Nil(t, decision.Replacement)
}

func TestExtensionServiceApproveOverridesGrantedWeeks(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	store.requests["ext-1"] = &models.ExtensionRequest{
		ID:             "ext-1",
		RequestedWeeks: 4,
		Status:         models.ExtensionStatusPending,
	}

	granted := 2
	_, err := svc.Approve(context.Background(), "ext-1", ApproveExtensionRequest{GrantedWeeks: &granted}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.approveParams.GrantedWeeks)
}

func TestExtensionServiceApproveAlreadyResolved(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	store.requests["ext-1"] = &models.ExtensionRequest{ID: "ext-1", Status: models.ExtensionStatusRejected}
	store.approveErr = repository.ErrAlreadyResolved

	_, err := svc.Approve(context.Background(), "ext-1", ApproveExtensionRequest{}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestExtensionServiceApproveRescheduleCollision(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	store.requests["ext-1"] = &models.ExtensionRequest{ID: "ext-1", Status: models.ExtensionStatusPending}
	store.approveErr = uniqueViolationErr(repository.ConstraintActiveSlot)

	_, err := svc.Approve(context.Background(), "ext-1", ApproveExtensionRequest{}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflictDetected.Code, appErr.Code)
}

func TestExtensionServiceApproveProposedDateOnHoliday(t *testing.T) {
	proposed := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &extensionStoreMock{requests: map[string]*models.ExtensionRequest{
		"ext-1": {ID: "ext-1", SessionID: "ses-1", RequestedWeeks: 1, Status: models.ExtensionStatusPending, ProposedDate: &proposed},
	}}
	sessions := &sessionReaderMock{sessions: map[string]*models.Session{}}
	finder := &slotFinderMock{enrollments: map[string]*models.Enrollment{}}
	svc := NewExtensionService(store, sessions, finder, &calendarProviderStub{calendar: calendarOf(t, "2025-03-10")}, nil, nil)

	_, err := svc.Approve(context.Background(), "ext-1", ApproveExtensionRequest{}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, store.approveParams)
}

func TestExtensionServiceRejectRequiresReason(t *testing.T) {
	svc, _, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))

	_, err := svc.Reject(context.Background(), "ext-1", RejectExtensionRequest{Reason: "no"}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExtensionServiceRejectAlreadyResolved(t *testing.T) {
	svc, store, _, _ := newExtensionFixture(regularEnrollment(), scheduledSession("enr-1"))
	store.rejectErr = repository.ErrAlreadyResolved

	_, err := svc.Reject(context.Background(), "ext-1", RejectExtensionRequest{Reason: "already decided elsewhere"}, "admin-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}
