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

type extensionStore interface {
	Create(ctx context.Context, request *models.ExtensionRequest) error
	FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error)
	List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error)
	Approve(ctx context.Context, params repository.ApproveParams) (*models.ExtensionRequest, *models.Session, error)
	Reject(ctx context.Context, id, reviewerID, reason string) (*models.ExtensionRequest, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	CountByEnrollmentAndStatuses(ctx context.Context, enrollmentID string, statuses []models.SessionStatus) (int, error)
}

type slotEnrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActiveForSlot(ctx context.Context, studentID string, weeklyDay time.Weekday, timeSlot, location string) (*models.Enrollment, error)
}

// CreateExtensionRequest opens a deadline extension request.
type CreateExtensionRequest struct {
	SessionID        string `json:"session_id" validate:"required"`
	RequestedWeeks   int    `json:"requested_weeks" validate:"required,min=1"`
	Reason           string `json:"reason" validate:"required,min=5"`
	ProposedDate     string `json:"proposed_date" validate:"omitempty,datetime=2006-01-02"`
	ProposedTimeSlot string `json:"proposed_time_slot"`
}

// ApproveExtensionRequest carries the admin decision.
type ApproveExtensionRequest struct {
	GrantedWeeks *int   `json:"granted_weeks" validate:"omitempty,min=1"`
	ReviewNote   string `json:"review_note"`
}

// RejectExtensionRequest requires a reason.
type RejectExtensionRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// ExtensionCreated bundles the new request with its advisory metadata. The
// policy band and warnings inform the reviewer and never block anything.
type ExtensionCreated struct {
	Request    *models.ExtensionRequest `json:"request"`
	PolicyBand models.PolicyBand        `json:"policy_band"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

// ExtensionDecision is the outcome of an approve call; Replacement is set
// when the approval also rescheduled the triggering session.
type ExtensionDecision struct {
	Request     *models.ExtensionRequest `json:"request"`
	Replacement *models.Session          `json:"replacement,omitempty"`
}

// ExtensionService owns the deadline extension workflow.
type ExtensionService struct {
	repo        extensionStore
	sessions    sessionReader
	enrollments slotEnrollmentFinder
	calendars   calendarProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExtensionService constructs ExtensionService.
func NewExtensionService(repo extensionStore, sessions sessionReader, enrollments slotEnrollmentFinder, calendars calendarProvider, validate *validator.Validate, logger *zap.Logger) *ExtensionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionService{repo: repo, sessions: sessions, enrollments: enrollments, calendars: calendars, validator: validate, logger: logger}
}

// List returns extension requests with pagination metadata.
func (s *ExtensionService) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list extension requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one extension request.
func (s *ExtensionService) Get(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extension request")
	}
	return request, nil
}

var pendingMakeupStatuses = []models.SessionStatus{
	models.SessionStatusPendingResched,
	models.SessionStatusPendingSick,
	models.SessionStatusPendingWeather,
}

// Create opens a request. The grant target is the enrollment currently in
// force for the student's regular slot, which may be a successor of the
// enrollment the triggering session belongs to.
func (s *ExtensionService) Create(ctx context.Context, req CreateExtensionRequest, requesterID string) (*ExtensionCreated, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.EnrollmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ad-hoc sessions cannot trigger extension requests")
	}

	enrollment, err := s.enrollments.FindByID(ctx, *session.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	// The student may have renewed since the session was generated; the grant
	// must land on whichever enrollment holds the regular slot now.
	target := enrollment
	current, err := s.enrollments.FindActiveForSlot(ctx, enrollment.StudentID, enrollment.WeeklyDay, enrollment.TimeSlot, enrollment.Location)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve grant target")
	}
	if current != nil {
		target = current
	}

	request := &models.ExtensionRequest{
		SessionID:          session.ID,
		EnrollmentID:       enrollment.ID,
		TargetEnrollmentID: target.ID,
		RequestedWeeks:     req.RequestedWeeks,
		Reason:             req.Reason,
		Status:             models.ExtensionStatusPending,
		RequestedBy:        requesterID,
	}
	if req.ProposedDate != "" {
		proposed, err := time.ParseInLocation("2006-01-02", req.ProposedDate, time.UTC)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposed date")
		}
		request.ProposedDate = &proposed
		if req.ProposedTimeSlot != "" {
			request.ProposedTimeSlot = &req.ProposedTimeSlot
		}
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create extension request")
	}

	band := models.BandForWeeks(req.RequestedWeeks)
	var warnings []string
	if band != models.PolicyBandStandard {
		warnings = append(warnings, fmt.Sprintf("requested weeks fall in the %q policy band", band))
	}
	pending, err := s.sessions.CountByEnrollmentAndStatuses(ctx, target.ID, pendingMakeupStatuses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending make-ups")
	}
	if pending == 0 {
		warnings = append(warnings, "target enrollment has no pending make-up sessions")
	}

	s.logger.Info("extension request created",
		zap.String("request_id", request.ID),
		zap.String("target_enrollment_id", target.ID),
		zap.Int("requested_weeks", req.RequestedWeeks),
		zap.String("policy_band", string(band)))

	return &ExtensionCreated{Request: request, PolicyBand: band, Warnings: warnings}, nil
}

// Approve grants the extension, defaulting granted weeks to the requested
// amount. A proposed reschedule slot is checked against the holiday calendar
// before anything is written.
func (s *ExtensionService) Approve(ctx context.Context, id string, req ApproveExtensionRequest, reviewerID string) (*ExtensionDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.ProposedDate != nil {
		calendar, err := s.calendars.CalendarFrom(ctx, *request.ProposedDate)
		if err != nil {
			return nil, err
		}
		if calendar.IsHoliday(*request.ProposedDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("proposed reschedule date %s is a holiday", request.ProposedDate.Format("2006-01-02")))
		}
	}

	granted := request.RequestedWeeks
	if req.GrantedWeeks != nil {
		granted = *req.GrantedWeeks
	}
	auditNote := fmt.Sprintf("[%s] extension +%dw granted by %s (request %s)",
		time.Now().UTC().Format("2006-01-02"), granted, reviewerID, id)

	updated, replacement, err := s.repo.Approve(ctx, repository.ApproveParams{
		RequestID:    id,
		ReviewerID:   reviewerID,
		GrantedWeeks: granted,
		ReviewNote:   req.ReviewNote,
		AuditNote:    auditNote,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyResolved):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "extension request already resolved")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		case repository.UniqueViolation(err, repository.ConstraintActiveSlot):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "proposed reschedule slot collides with an existing booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve extension request")
	}

	s.logger.Info("extension request approved",
		zap.String("request_id", id),
		zap.Int("granted_weeks", granted),
		zap.Bool("rescheduled", replacement != nil))

	return &ExtensionDecision{Request: updated, Replacement: replacement}, nil
}

// Reject closes the request with a reason and no other side effects.
func (s *ExtensionService) Reject(ctx context.Context, id string, req RejectExtensionRequest, reviewerID string) (*models.ExtensionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	request, err := s.repo.Reject(ctx, id, reviewerID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyResolved):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "extension request already resolved")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject extension request")
	}

	s.logger.Info("extension request rejected", zap.String("request_id", id))
	return request, nil
}
