package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
)

type sessionStore interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindConflicts(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeEnrollmentID string) ([]models.Session, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus, notes string) error
	Reschedule(ctx context.Context, original *models.Session, date time.Time, timeSlot, location string) (*models.Session, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// Session transition actions accepted on the PATCH endpoint.
const (
	ActionMarkAttendance = "mark_attendance"
	ActionPendingMakeup  = "pending_makeup"
	ActionCancel         = "cancel"
	ActionReschedule     = "reschedule"
)

// TransitionRequest drives every session state change.
type TransitionRequest struct {
	Action   string `json:"action" validate:"required,oneof=mark_attendance pending_makeup cancel reschedule"`
	Status   string `json:"status" validate:"omitempty,oneof=ATTENDED ATTENDED_MAKEUP NO_SHOW"`
	Cause    string `json:"cause" validate:"omitempty,oneof=RESCHEDULE SICK_LEAVE WEATHER"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// TransitionResult reports the updated session; on reschedule the replacement
// row is included alongside the cancelled original.
type TransitionResult struct {
	Session     *models.Session `json:"session"`
	Replacement *models.Session `json:"replacement,omitempty"`
}

// SessionService owns the session state machine.
type SessionService struct {
	repo        sessionStore
	enrollments enrollmentReader
	calendars   calendarProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionStore, enrollments enrollmentReader, calendars calendarProvider, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, enrollments: enrollments, calendars: calendars, validator: validate, logger: logger}
}

// List returns sessions with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Transition applies one state change to a session.
func (s *SessionService) Transition(ctx context.Context, id string, req TransitionRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionMarkAttendance:
		return s.markAttendance(ctx, session, req)
	case ActionPendingMakeup:
		return s.markPendingMakeup(ctx, session, req)
	case ActionCancel:
		return s.cancel(ctx, session, req)
	case ActionReschedule:
		return s.reschedule(ctx, session, req)
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown action")
}

var attendanceSources = map[models.SessionStatus]bool{
	models.SessionStatusScheduled:   true,
	models.SessionStatusTrialClass:  true,
	models.SessionStatusMakeupClass: true,
}

func (s *SessionService) markAttendance(ctx context.Context, session *models.Session, req TransitionRequest) (*TransitionResult, error) {
	if req.Status == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status is required for attendance marking")
	}
	if !attendanceSources[session.Status] {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot mark attendance from status %s", session.Status))
	}
	target := models.SessionStatus(req.Status)
	if err := s.repo.UpdateStatus(ctx, session.ID, target, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	session.Status = target
	s.logger.Info("attendance marked", zap.String("session_id", session.ID), zap.String("status", string(target)))
	return &TransitionResult{Session: session}, nil
}

func (s *SessionService) markPendingMakeup(ctx context.Context, session *models.Session, req TransitionRequest) (*TransitionResult, error) {
	if req.Cause == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cause is required for pending make-up")
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot request a make-up from status %s", session.Status))
	}
	target, ok := models.PendingStatusForCause(models.MakeupCause(req.Cause))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown make-up cause")
	}
	if err := s.repo.UpdateStatus(ctx, session.ID, target, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	session.Status = target
	s.logger.Info("session marked pending make-up",
		zap.String("session_id", session.ID), zap.String("cause", req.Cause))
	return &TransitionResult{Session: session}, nil
}

func (s *SessionService) cancel(ctx context.Context, session *models.Session, req TransitionRequest) (*TransitionResult, error) {
	if session.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot cancel a session in terminal status %s", session.Status))
	}
	if err := s.repo.UpdateStatus(ctx, session.ID, models.SessionStatusCancelled, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	session.Status = models.SessionStatusCancelled
	s.logger.Info("session cancelled", zap.String("session_id", session.ID))
	return &TransitionResult{Session: session}, nil
}

// validateSlot applies holiday, conflict and deadline checks to a candidate
// (date, time slot, location) for a student. The deadline only gates the
// enrollment's own recurring slot; ad-hoc slots at other times are exempt.
func (s *SessionService) validateSlot(ctx context.Context, session *models.Session, date time.Time, timeSlot, location string) error {
	calendar, err := s.calendars.CalendarFrom(ctx, date)
	if err != nil {
		return err
	}
	if calendar.IsHoliday(date) {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%s is a holiday", date.Format("2006-01-02")))
	}

	colliding, err := s.repo.FindConflicts(ctx, session.StudentID, date, timeSlot, location, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	// The session being moved may still hold the slot itself.
	filtered := colliding[:0]
	for _, c := range colliding {
		if c.ID != session.ID {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > 0 {
		return appErrors.ConflictDetected(sessionIDs(filtered))
	}

	return regularSlotDeadline(ctx, s.enrollments, s.calendars, session.EnrollmentID, date, timeSlot, location)
}

// regularSlotDeadline rejects a candidate landing on the enrollment's own
// recurring slot past the effective end date. Ad-hoc slots and non-regular
// enrollments are exempt. Every path that creates or moves a session onto a
// concrete slot runs through this, reschedules and make-up bookings alike.
func regularSlotDeadline(ctx context.Context, enrollments enrollmentReader, calendars calendarProvider, enrollmentID *string, date time.Time, timeSlot, location string) error {
	if enrollmentID == nil {
		return nil
	}
	enrollment, err := enrollments.FindByID(ctx, *enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Kind != models.EnrollmentKindRegular {
		return nil
	}
	onRegularSlot := date.Weekday() == enrollment.WeeklyDay &&
		timeSlot == enrollment.TimeSlot &&
		location == enrollment.Location
	if !onRegularSlot {
		return nil
	}

	totalWeeks := enrollment.LessonsPaid + enrollment.ExtensionWeeks
	endCalendar, err := calendars.CalendarSpanning(ctx, enrollment.StartDate, totalWeeks)
	if err != nil {
		return err
	}
	deadline, err := EffectiveEndDate(endCalendar, enrollment.StartDate, enrollment.WeeklyDay, totalWeeks)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute effective end date")
	}
	if DateOnly(date).After(deadline) {
		return appErrors.DeadlineExceeded(enrollment.ID, deadline)
	}
	return nil
}

func (s *SessionService) reschedule(ctx context.Context, session *models.Session, req TransitionRequest) (*TransitionResult, error) {
	if req.Date == "" || req.TimeSlot == "" || req.Location == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date, time_slot and location are required for reschedule")
	}
	if session.Status != models.SessionStatusScheduled && session.Status != models.SessionStatusTrialClass {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot reschedule from status %s", session.Status))
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	if err := s.validateSlot(ctx, session, date, req.TimeSlot, req.Location); err != nil {
		return nil, err
	}

	replacement, err := s.repo.Reschedule(ctx, session, date, req.TimeSlot, req.Location)
	if err != nil {
		if repository.UniqueViolation(err, repository.ConstraintActiveSlot) {
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "target slot was booked concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}
	session.Status = models.SessionStatusCancelled
	session.RescheduledToID = &replacement.ID

	s.logger.Info("session rescheduled",
		zap.String("session_id", session.ID),
		zap.String("replacement_id", replacement.ID),
		zap.String("date", req.Date))

	return &TransitionResult{Session: session, Replacement: replacement}, nil
}
