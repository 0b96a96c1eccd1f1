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

type makeupStore interface {
	CreateWithSlots(ctx context.Context, proposal *models.MakeupProposal, slots []models.MakeupProposalSlot) error
	FindDetailByID(ctx context.Context, id string) (*models.MakeupProposalDetail, error)
	FindSlotByID(ctx context.Context, id string) (*models.MakeupProposalSlot, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.MakeupProposalDetail, int, error)
	ApproveSlot(ctx context.Context, params repository.ApproveSlotParams) (*models.Session, error)
	RejectSlot(ctx context.Context, slotID, decidedBy, reason string) (bool, error)
	BookDirect(ctx context.Context, proposalID string, makeup *models.Session) error
}

// ProposalSlotInput is one candidate slot in a proposal payload.
type ProposalSlotInput struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot" validate:"required"`
	TutorID  string `json:"tutor_id" validate:"required"`
	Location string `json:"location" validate:"required"`
}

// CreateProposalRequest opens a make-up proposal for a pending session.
type CreateProposalRequest struct {
	SessionID string              `json:"session_id" validate:"required"`
	Mode      string              `json:"mode" validate:"required,oneof=SPECIFIC_SLOTS NEEDS_INPUT"`
	Slots     []ProposalSlotInput `json:"slots" validate:"omitempty,max=3,dive"`
}

// RejectSlotRequest carries the optional rejection reason.
type RejectSlotRequest struct {
	Reason string `json:"reason"`
}

// BookMakeupRequest resolves a needs-input proposal with a concrete slot
// chosen by the primary tutor.
type BookMakeupRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot" validate:"required"`
	Location string `json:"location" validate:"required"`
}

// SlotDecision reports the outcome of a slot approve/reject call.
type SlotDecision struct {
	Proposal *models.MakeupProposalDetail `json:"proposal"`
	Makeup   *models.Session              `json:"makeup,omitempty"`
}

// MakeupService owns the make-up proposal workflow.
type MakeupService struct {
	repo        makeupStore
	sessions    sessionStore
	enrollments enrollmentReader
	calendars   calendarProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMakeupService constructs MakeupService.
func NewMakeupService(repo makeupStore, sessions sessionStore, enrollments enrollmentReader, calendars calendarProvider, validate *validator.Validate, logger *zap.Logger) *MakeupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupService{repo: repo, sessions: sessions, enrollments: enrollments, calendars: calendars, validator: validate, logger: logger}
}

// List returns proposals with their slots.
func (s *MakeupService) List(ctx context.Context, filter models.ProposalFilter) ([]models.MakeupProposalDetail, *models.Pagination, error) {
	proposals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list make-up proposals")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return proposals, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one proposal with its slots.
func (s *MakeupService) Get(ctx context.Context, id string) (*models.MakeupProposalDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "make-up proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load make-up proposal")
	}
	return detail, nil
}

// Create opens a proposal for a pending-make-up session. SPECIFIC_SLOTS
// proposals carry one to three candidates; NEEDS_INPUT delegates the choice
// to the enrollment's primary tutor and carries none.
func (s *MakeupService) Create(ctx context.Context, req CreateProposalRequest, proposerID string) (*models.MakeupProposalDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}
	mode := models.ProposalMode(req.Mode)
	if mode == models.ProposalModeSpecificSlots && len(req.Slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "specific-slot proposals require at least one slot")
	}
	if mode == models.ProposalModeNeedsInput && len(req.Slots) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "needs-input proposals carry no slots")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.Status.IsPendingMakeup() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("session in status %s does not need a make-up", session.Status))
	}

	proposal := &models.MakeupProposal{
		SessionID:  session.ID,
		Mode:       mode,
		Status:     models.ProposalStatusPending,
		ProposedBy: proposerID,
	}
	slots := make([]models.MakeupProposalSlot, len(req.Slots))
	for i, in := range req.Slots {
		date, err := time.ParseInLocation("2006-01-02", in.Date, time.UTC)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot date")
		}
		slots[i] = models.MakeupProposalSlot{
			Date:     date,
			TimeSlot: in.TimeSlot,
			TutorID:  in.TutorID,
			Location: in.Location,
			Status:   models.SlotStatusPending,
		}
	}

	if err := s.repo.CreateWithSlots(ctx, proposal, slots); err != nil {
		if repository.UniqueViolation(err, repository.ConstraintPendingProposal) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an unresolved proposal already exists for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create make-up proposal")
	}

	s.logger.Info("make-up proposal created",
		zap.String("proposal_id", proposal.ID),
		zap.String("session_id", session.ID),
		zap.String("mode", string(mode)),
		zap.Int("slots", len(slots)))

	return &models.MakeupProposalDetail{MakeupProposal: *proposal, Slots: slots}, nil
}

func (s *MakeupService) slotForDecision(ctx context.Context, slotID string, actor models.JWTClaims) (*models.MakeupProposalSlot, error) {
	slot, err := s.repo.FindSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal slot")
	}
	if actor.Role != models.RoleAdmin && slot.TutorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the slot's target tutor may decide it")
	}
	return slot, nil
}

// ApproveSlot accepts one candidate. First approval wins; the repository
// settles the whole proposal in one transaction.
func (s *MakeupService) ApproveSlot(ctx context.Context, slotID string, actor models.JWTClaims) (*SlotDecision, error) {
	slot, err := s.slotForDecision(ctx, slotID, actor)
	if err != nil {
		return nil, err
	}
	if slot.Status != models.SlotStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "slot already decided")
	}

	proposal, err := s.Get(ctx, slot.ProposalID)
	if err != nil {
		return nil, err
	}
	original, err := s.sessions.FindByID(ctx, proposal.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "original session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original session")
	}

	colliding, err := s.sessions.FindConflicts(ctx, original.StudentID, slot.Date, slot.TimeSlot, slot.Location, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(colliding) > 0 {
		return nil, appErrors.ConflictDetected(sessionIDs(colliding))
	}
	if err := regularSlotDeadline(ctx, s.enrollments, s.calendars, original.EnrollmentID, slot.Date, slot.TimeSlot, slot.Location); err != nil {
		return nil, err
	}

	makeup, err := s.repo.ApproveSlot(ctx, repository.ApproveSlotParams{SlotID: slotID, DecidedBy: actor.UserID})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyResolved):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal already resolved")
		case repository.UniqueViolation(err, repository.ConstraintActiveSlot):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "slot was booked concurrently")
		case repository.UniqueViolation(err, repository.ConstraintActiveMakeup):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "an active make-up already exists for the original session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve slot")
	}

	detail, err := s.Get(ctx, slot.ProposalID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("make-up slot approved",
		zap.String("slot_id", slotID),
		zap.String("proposal_id", slot.ProposalID),
		zap.String("makeup_session_id", makeup.ID))

	return &SlotDecision{Proposal: detail, Makeup: makeup}, nil
}

// RejectSlot declines one candidate. When the last pending sibling is
// rejected, the proposal itself closes rejected and the original session
// stays pending.
func (s *MakeupService) RejectSlot(ctx context.Context, slotID string, req RejectSlotRequest, actor models.JWTClaims) (*SlotDecision, error) {
	slot, err := s.slotForDecision(ctx, slotID, actor)
	if err != nil {
		return nil, err
	}
	if slot.Status != models.SlotStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "slot already decided")
	}

	proposalRejected, err := s.repo.RejectSlot(ctx, slotID, actor.UserID, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject slot")
	}

	detail, err := s.Get(ctx, slot.ProposalID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("make-up slot rejected",
		zap.String("slot_id", slotID),
		zap.String("proposal_id", slot.ProposalID),
		zap.Bool("proposal_rejected", proposalRejected))

	return &SlotDecision{Proposal: detail}, nil
}

// Book resolves a needs-input proposal: the enrollment's primary tutor picks
// a concrete slot and the make-up is created directly.
func (s *MakeupService) Book(ctx context.Context, proposalID string, req BookMakeupRequest, actor models.JWTClaims) (*SlotDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	proposal, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Mode != models.ProposalModeNeedsInput {
		return nil, appErrors.Clone(appErrors.ErrValidation, "direct booking only resolves needs-input proposals")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal already resolved")
	}

	original, err := s.sessions.FindByID(ctx, proposal.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "original session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original session")
	}
	primaryTutorID := original.TutorID
	if original.EnrollmentID != nil {
		enrollment, err := s.enrollments.FindByID(ctx, *original.EnrollmentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment != nil {
			primaryTutorID = enrollment.TutorID
		}
	}
	if actor.Role != models.RoleAdmin && primaryTutorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the primary tutor may book this make-up")
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	calendar, err := s.calendars.CalendarFrom(ctx, date)
	if err != nil {
		return nil, err
	}
	if calendar.IsHoliday(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%s is a holiday", date.Format("2006-01-02")))
	}

	colliding, err := s.sessions.FindConflicts(ctx, original.StudentID, date, req.TimeSlot, req.Location, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(colliding) > 0 {
		return nil, appErrors.ConflictDetected(sessionIDs(colliding))
	}
	if err := regularSlotDeadline(ctx, s.enrollments, s.calendars, original.EnrollmentID, date, req.TimeSlot, req.Location); err != nil {
		return nil, err
	}

	makeup := &models.Session{
		EnrollmentID: original.EnrollmentID,
		StudentID:    original.StudentID,
		TutorID:      original.TutorID,
		Date:         date,
		TimeSlot:     req.TimeSlot,
		Location:     req.Location,
		Status:       models.SessionStatusMakeupClass,
		MakeupForID:  &original.ID,
	}
	if err := s.repo.BookDirect(ctx, proposalID, makeup); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyResolved):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal already resolved")
		case repository.UniqueViolation(err, repository.ConstraintActiveSlot):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "slot was booked concurrently")
		case repository.UniqueViolation(err, repository.ConstraintActiveMakeup):
			return nil, appErrors.Clone(appErrors.ErrConflictDetected, "an active make-up already exists for the original session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book make-up")
	}

	detail, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("needs-input proposal booked",
		zap.String("proposal_id", proposalID),
		zap.String("makeup_session_id", makeup.ID))

	return &SlotDecision{Proposal: detail, Makeup: makeup}, nil
}
