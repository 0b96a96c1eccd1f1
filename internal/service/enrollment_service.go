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

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActiveForSlot(ctx context.Context, studentID string, weeklyDay time.Weekday, timeSlot, location string) (*models.Enrollment, error)
	CreateWithSessions(ctx context.Context, enrollment *models.Enrollment, sessions []models.Session) error
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	CreateRenewal(ctx context.Context, predecessorID string, successor *models.Enrollment, sessions []models.Session) error
}

type conflictFinder interface {
	FindConflicts(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeEnrollmentID string) ([]models.Session, error)
}

type calendarProvider interface {
	CalendarFrom(ctx context.Context, start time.Time) (*Calendar, error)
	CalendarSpanning(ctx context.Context, start time.Time, weeks int) (*Calendar, error)
}

// CreateEnrollmentRequest describes enrollment creation.
type CreateEnrollmentRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	TutorID     string `json:"tutor_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=REGULAR TRIAL ONE_TIME"`
	WeeklyDay   int    `json:"weekly_day" validate:"min=0,max=6"`
	TimeSlot    string `json:"time_slot" validate:"required"`
	Location    string `json:"location" validate:"required"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	LessonsPaid int    `json:"lessons_paid" validate:"required,min=1"`
	Notes       string `json:"notes"`
}

// RenewEnrollmentRequest creates a successor block continuing a weekly slot.
type RenewEnrollmentRequest struct {
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	LessonsPaid int    `json:"lessons_paid" validate:"required,min=1"`
	Notes       string `json:"notes"`
}

// EnrollmentResult bundles the created enrollment with its expansion.
type EnrollmentResult struct {
	Enrollment *models.Enrollment      `json:"enrollment"`
	Sessions   []models.Session        `json:"sessions"`
	Planned    []models.PlannedSession `json:"planned"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// PreviewResult is the dry-run expansion: nothing is written.
type PreviewResult struct {
	Planned          []models.PlannedSession `json:"planned"`
	EffectiveEndDate time.Time               `json:"effective_end_date"`
	Conflicts        []models.Session        `json:"conflicts,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
}

// EnrollmentService orchestrates enrollment creation, payment lifecycle and
// renewal linkage.
type EnrollmentService struct {
	repo      enrollmentStore
	sessions  conflictFinder
	calendars calendarProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, sessions conflictFinder, calendars calendarProvider, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, sessions: sessions, calendars: calendars, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) expand(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, []models.PlannedSession, error) {
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	kind := models.EnrollmentKind(req.Kind)
	weeklyDay := time.Weekday(req.WeeklyDay)

	// Trial and one-time enrollments always expand to a single session.
	count := req.LessonsPaid
	if kind == models.EnrollmentKindTrial || kind == models.EnrollmentKindOneTime {
		count = 1
	}

	calendar, err := s.calendars.CalendarSpanning(ctx, startDate, count)
	if err != nil {
		return nil, nil, err
	}

	planned, err := GenerateSessions(calendar, startDate, weeklyDay, count)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to expand sessions")
	}

	enrollment := &models.Enrollment{
		StudentID:     req.StudentID,
		TutorID:       req.TutorID,
		Kind:          kind,
		WeeklyDay:     weeklyDay,
		TimeSlot:      req.TimeSlot,
		Location:      req.Location,
		StartDate:     startDate,
		LessonsPaid:   req.LessonsPaid,
		PaymentStatus: models.PaymentStatusPending,
		Notes:         req.Notes,
	}
	return enrollment, planned, nil
}

func deferralWarnings(planned []models.PlannedSession) []string {
	var warnings []string
	for _, p := range planned {
		if p.Deferred && p.DeferredFrom != nil {
			warnings = append(warnings, fmt.Sprintf("lesson deferred from %s to %s (holiday)",
				p.DeferredFrom.Format("2006-01-02"), p.Date.Format("2006-01-02")))
		}
	}
	return warnings
}

func sessionIDs(sessions []models.Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

// Create validates, expands and persists an enrollment together with its
// generated sessions. Conflicts with existing active sessions are a hard
// block.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest, actorID string) (*EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, planned, err := s.expand(ctx, req)
	if err != nil {
		return nil, err
	}
	enrollment.CreatedBy = actorID

	for _, p := range planned {
		colliding, err := s.sessions.FindConflicts(ctx, req.StudentID, p.Date, req.TimeSlot, req.Location, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
		}
		if len(colliding) > 0 {
			return nil, appErrors.ConflictDetected(sessionIDs(colliding))
		}
	}

	status := models.SessionStatusScheduled
	if enrollment.Kind == models.EnrollmentKindTrial {
		status = models.SessionStatusTrialClass
	}
	sessions := make([]models.Session, len(planned))
	for i, p := range planned {
		sessions[i] = models.Session{
			StudentID: enrollment.StudentID,
			TutorID:   enrollment.TutorID,
			Date:      p.Date,
			TimeSlot:  enrollment.TimeSlot,
			Location:  enrollment.Location,
			Status:    status,
		}
	}

	if err := s.repo.CreateWithSessions(ctx, enrollment, sessions); err != nil {
		switch {
		case repository.UniqueViolation(err, repository.ConstraintActiveEnrollment):
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment already exists for this weekly slot")
		case repository.UniqueViolation(err, repository.ConstraintActiveSlot):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "a generated session collides with an existing booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("sessions", len(sessions)))

	return &EnrollmentResult{
		Enrollment: enrollment,
		Sessions:   sessions,
		Planned:    planned,
		Warnings:   deferralWarnings(planned),
	}, nil
}

// Preview runs the same expansion without writing anything, surfacing
// conflicts and deferrals.
func (s *EnrollmentService) Preview(ctx context.Context, req CreateEnrollmentRequest) (*PreviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	_, planned, err := s.expand(ctx, req)
	if err != nil {
		return nil, err
	}

	var conflicts []models.Session
	for _, p := range planned {
		colliding, err := s.sessions.FindConflicts(ctx, req.StudentID, p.Date, req.TimeSlot, req.Location, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
		}
		conflicts = append(conflicts, colliding...)
	}

	return &PreviewResult{
		Planned:          planned,
		EffectiveEndDate: planned[len(planned)-1].Date,
		Conflicts:        conflicts,
		Warnings:         deferralWarnings(planned),
	}, nil
}

// ConfirmPayment marks a pending enrollment as paid.
func (s *EnrollmentService) ConfirmPayment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.PaymentStatus != models.PaymentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment is not awaiting payment")
	}
	if err := s.repo.UpdatePaymentStatus(ctx, id, models.PaymentStatusPaid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
	}
	enrollment.PaymentStatus = models.PaymentStatusPaid
	return enrollment, nil
}

// Cancel marks an enrollment cancelled, freeing its weekly slot for
// re-enrollment. Enrollments are never deleted.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.PaymentStatus == models.PaymentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment already cancelled")
	}
	if err := s.repo.UpdatePaymentStatus(ctx, id, models.PaymentStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	enrollment.PaymentStatus = models.PaymentStatusCancelled
	return enrollment, nil
}

// Renew creates a successor enrollment continuing the same weekly slot and
// links the chain in both directions.
func (s *EnrollmentService) Renew(ctx context.Context, predecessorID string, req RenewEnrollmentRequest, actorID string) (*EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renewal payload")
	}
	predecessor, err := s.Get(ctx, predecessorID)
	if err != nil {
		return nil, err
	}
	if predecessor.Kind != models.EnrollmentKindRegular {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only regular enrollments can be renewed")
	}
	if predecessor.RenewedToID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already renewed")
	}

	createReq := CreateEnrollmentRequest{
		StudentID:   predecessor.StudentID,
		TutorID:     predecessor.TutorID,
		Kind:        string(models.EnrollmentKindRegular),
		WeeklyDay:   int(predecessor.WeeklyDay),
		TimeSlot:    predecessor.TimeSlot,
		Location:    predecessor.Location,
		StartDate:   req.StartDate,
		LessonsPaid: req.LessonsPaid,
		Notes:       req.Notes,
	}
	successor, planned, err := s.expand(ctx, createReq)
	if err != nil {
		return nil, err
	}
	successor.CreatedBy = actorID

	sessions := make([]models.Session, len(planned))
	for i, p := range planned {
		sessions[i] = models.Session{
			StudentID: successor.StudentID,
			TutorID:   successor.TutorID,
			Date:      p.Date,
			TimeSlot:  successor.TimeSlot,
			Location:  successor.Location,
			Status:    models.SessionStatusScheduled,
		}
	}

	if err := s.repo.CreateRenewal(ctx, predecessorID, successor, sessions); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRenewed):
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already renewed")
		case repository.UniqueViolation(err, repository.ConstraintActiveEnrollment):
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment already exists for this weekly slot")
		case repository.UniqueViolation(err, repository.ConstraintActiveSlot):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "a generated session collides with an existing booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renew enrollment")
	}

	s.logger.Info("enrollment renewed",
		zap.String("predecessor_id", predecessorID),
		zap.String("successor_id", successor.ID))

	return &EnrollmentResult{
		Enrollment: successor,
		Sessions:   sessions,
		Planned:    planned,
		Warnings:   deferralWarnings(planned),
	}, nil
}
