package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// MakeupRepository persists make-up proposals and their slots.
type MakeupRepository struct {
	db *sqlx.DB
}

// NewMakeupRepository constructs the repository.
func NewMakeupRepository(db *sqlx.DB) *MakeupRepository {
	return &MakeupRepository{db: db}
}

const proposalColumns = `id, session_id, mode, status, proposed_by, created_at, resolved_at`
const slotColumns = `id, proposal_id, date, time_slot, tutor_id, location, status, decided_by, decided_at, reject_reason`

// CreateWithSlots inserts a proposal and its candidate slots in one
// transaction. The pending-proposal unique index rejects a second unresolved
// proposal for the same session.
func (r *MakeupRepository) CreateWithSlots(ctx context.Context, proposal *models.MakeupProposal, slots []models.MakeupProposalSlot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin proposal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusPending
	}
	proposal.CreatedAt = now

	const insertProposal = `INSERT INTO makeup_proposals (id, session_id, mode, status, proposed_by, created_at, resolved_at)
        VALUES (:id, :session_id, :mode, :status, :proposed_by, :created_at, :resolved_at)`
	if _, err = tx.NamedExecContext(ctx, insertProposal, proposal); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}

	const insertSlot = `INSERT INTO makeup_proposal_slots (id, proposal_id, date, time_slot, tutor_id, location, status, decided_by, decided_at, reject_reason)
        VALUES (:id, :proposal_id, :date, :time_slot, :tutor_id, :location, :status, :decided_by, :decided_at, :reject_reason)`
	for i := range slots {
		s := &slots[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.ProposalID = proposal.ID
		if s.Status == "" {
			s.Status = models.SlotStatusPending
		}
		if _, err = tx.NamedExecContext(ctx, insertSlot, s); err != nil {
			return fmt.Errorf("create proposal slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit proposal: %w", err)
	}
	return nil
}

// FindDetailByID returns a proposal with its slots.
func (r *MakeupRepository) FindDetailByID(ctx context.Context, id string) (*models.MakeupProposalDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM makeup_proposals WHERE id = $1", proposalColumns)
	var proposal models.MakeupProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	slotsQuery := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE proposal_id = $1 ORDER BY date ASC, time_slot ASC", slotColumns)
	var slots []models.MakeupProposalSlot
	if err := r.db.SelectContext(ctx, &slots, slotsQuery, id); err != nil {
		return nil, fmt.Errorf("load proposal slots: %w", err)
	}
	return &models.MakeupProposalDetail{MakeupProposal: proposal, Slots: slots}, nil
}

// FindSlotByID returns a single candidate slot.
func (r *MakeupRepository) FindSlotByID(ctx context.Context, id string) (*models.MakeupProposalSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE id = $1", slotColumns)
	var slot models.MakeupProposalSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindPendingBySession returns the unresolved proposal for a session, if any.
func (r *MakeupRepository) FindPendingBySession(ctx context.Context, sessionID string) (*models.MakeupProposal, error) {
	query := fmt.Sprintf("SELECT %s FROM makeup_proposals WHERE session_id = $1 AND status = $2", proposalColumns)
	var proposal models.MakeupProposal
	if err := r.db.GetContext(ctx, &proposal, query, sessionID, models.ProposalStatusPending); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// List returns proposals filtered by the provided criteria, slots included.
func (r *MakeupRepository) List(ctx context.Context, filter models.ProposalFilter) ([]models.MakeupProposalDetail, int, error) {
	base := "FROM makeup_proposals p"
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("p.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM makeup_proposal_slots s WHERE s.proposal_id = p.id AND s.tutor_id = $%d)", len(args)+1))
		args = append(args, filter.TutorID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.session_id, p.mode, p.status, p.proposed_by, p.created_at, p.resolved_at
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)
	var proposals []models.MakeupProposal
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count proposals: %w", err)
	}

	details := make([]models.MakeupProposalDetail, 0, len(proposals))
	for _, p := range proposals {
		slotsQuery := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE proposal_id = $1 ORDER BY date ASC, time_slot ASC", slotColumns)
		var slots []models.MakeupProposalSlot
		if err := r.db.SelectContext(ctx, &slots, slotsQuery, p.ID); err != nil {
			return nil, 0, fmt.Errorf("load proposal slots: %w", err)
		}
		details = append(details, models.MakeupProposalDetail{MakeupProposal: p, Slots: slots})
	}
	return details, total, nil
}

// ApproveSlotParams identifies the winning slot and its decider.
type ApproveSlotParams struct {
	SlotID    string
	DecidedBy string
}

// ApproveSlot settles the proposal in one transaction: the winning slot is
// approved, every sibling rejected, the parent marked approved, a make-up
// session created at the slot, and the original session moved to
// MAKEUP_BOOKED. First approval wins; a losing concurrent attempt finds the
// proposal already resolved and gets ErrAlreadyResolved.
func (r *MakeupRepository) ApproveSlot(ctx context.Context, params ApproveSlotParams) (makeup *models.Session, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin slot approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var slot models.MakeupProposalSlot
	slotQuery := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE id = $1 FOR UPDATE", slotColumns)
	if err = tx.GetContext(ctx, &slot, slotQuery, params.SlotID); err != nil {
		return nil, fmt.Errorf("lock proposal slot: %w", err)
	}
	if slot.Status != models.SlotStatusPending {
		err = ErrAlreadyResolved
		return nil, err
	}

	var proposal models.MakeupProposal
	proposalQuery := fmt.Sprintf("SELECT %s FROM makeup_proposals WHERE id = $1 FOR UPDATE", proposalColumns)
	if err = tx.GetContext(ctx, &proposal, proposalQuery, slot.ProposalID); err != nil {
		return nil, fmt.Errorf("lock proposal: %w", err)
	}
	if proposal.Status != models.ProposalStatusPending {
		err = ErrAlreadyResolved
		return nil, err
	}

	var original models.Session
	sessionQuery := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1 FOR UPDATE", sessionColumns)
	if err = tx.GetContext(ctx, &original, sessionQuery, proposal.SessionID); err != nil {
		return nil, fmt.Errorf("lock original session: %w", err)
	}
	if !original.Status.IsPendingMakeup() {
		err = ErrAlreadyResolved
		return nil, err
	}

	now := time.Now().UTC()

	const winQuery = `UPDATE makeup_proposal_slots SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, winQuery, slot.ID, models.SlotStatusApproved, params.DecidedBy, now); err != nil {
		return nil, fmt.Errorf("approve slot: %w", err)
	}

	const loseQuery = `UPDATE makeup_proposal_slots SET status = $2, decided_at = $3
        WHERE proposal_id = $1 AND id <> $4 AND status = $5`
	if _, err = tx.ExecContext(ctx, loseQuery, proposal.ID, models.SlotStatusRejected, now, slot.ID, models.SlotStatusPending); err != nil {
		return nil, fmt.Errorf("reject sibling slots: %w", err)
	}

	const resolveQuery = `UPDATE makeup_proposals SET status = $2, resolved_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, resolveQuery, proposal.ID, models.ProposalStatusApproved, now); err != nil {
		return nil, fmt.Errorf("resolve proposal: %w", err)
	}

	makeup = &models.Session{
		ID:           uuid.NewString(),
		EnrollmentID: original.EnrollmentID,
		StudentID:    original.StudentID,
		TutorID:      slot.TutorID,
		Date:         slot.Date,
		TimeSlot:     slot.TimeSlot,
		Location:     slot.Location,
		Status:       models.SessionStatusMakeupClass,
		MakeupForID:  &original.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	const insertSession = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSession, makeup); err != nil {
		return nil, fmt.Errorf("create make-up session: %w", err)
	}

	const bookQuery = `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, bookQuery, original.ID, models.SessionStatusMakeupBooked, now); err != nil {
		return nil, fmt.Errorf("mark original make-up booked: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit slot approval: %w", err)
	}
	return makeup, nil
}

// RejectSlot records a single slot rejection; when it was the last pending
// sibling the parent proposal becomes rejected and the original session stays
// pending for a new proposal.
func (r *MakeupRepository) RejectSlot(ctx context.Context, slotID, decidedBy, reason string) (proposalRejected bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin slot rejection transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var slot models.MakeupProposalSlot
	slotQuery := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE id = $1 FOR UPDATE", slotColumns)
	if err = tx.GetContext(ctx, &slot, slotQuery, slotID); err != nil {
		return false, fmt.Errorf("lock proposal slot: %w", err)
	}
	if slot.Status != models.SlotStatusPending {
		err = ErrAlreadyResolved
		return false, err
	}

	now := time.Now().UTC()
	const rejectQuery = `UPDATE makeup_proposal_slots SET status = $2, decided_by = $3, decided_at = $4, reject_reason = $5 WHERE id = $1`
	var rejectReason interface{}
	if reason != "" {
		rejectReason = reason
	}
	if _, err = tx.ExecContext(ctx, rejectQuery, slot.ID, models.SlotStatusRejected, decidedBy, now, rejectReason); err != nil {
		return false, fmt.Errorf("reject slot: %w", err)
	}

	var remaining int
	const remainingQuery = `SELECT COUNT(*) FROM makeup_proposal_slots WHERE proposal_id = $1 AND status = $2`
	if err = tx.GetContext(ctx, &remaining, remainingQuery, slot.ProposalID, models.SlotStatusPending); err != nil {
		return false, fmt.Errorf("count pending siblings: %w", err)
	}
	if remaining == 0 {
		const resolveQuery = `UPDATE makeup_proposals SET status = $2, resolved_at = $3 WHERE id = $1 AND status = $4`
		if _, err = tx.ExecContext(ctx, resolveQuery, slot.ProposalID, models.ProposalStatusRejected, now, models.ProposalStatusPending); err != nil {
			return false, fmt.Errorf("resolve proposal: %w", err)
		}
		proposalRejected = true
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit slot rejection: %w", err)
	}
	return proposalRejected, nil
}

// BookDirect resolves a needs-input proposal through ordinary booking: the
// make-up session is created, the original moved to MAKEUP_BOOKED, and the
// proposal marked approved, all in one transaction.
func (r *MakeupRepository) BookDirect(ctx context.Context, proposalID string, makeup *models.Session) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin direct booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var proposal models.MakeupProposal
	proposalQuery := fmt.Sprintf("SELECT %s FROM makeup_proposals WHERE id = $1 FOR UPDATE", proposalColumns)
	if err = tx.GetContext(ctx, &proposal, proposalQuery, proposalID); err != nil {
		return fmt.Errorf("lock proposal: %w", err)
	}
	if proposal.Status != models.ProposalStatusPending {
		err = ErrAlreadyResolved
		return err
	}

	var original models.Session
	sessionQuery := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1 FOR UPDATE", sessionColumns)
	if err = tx.GetContext(ctx, &original, sessionQuery, proposal.SessionID); err != nil {
		return fmt.Errorf("lock original session: %w", err)
	}
	if !original.Status.IsPendingMakeup() {
		err = ErrAlreadyResolved
		return err
	}

	now := time.Now().UTC()
	if makeup.ID == "" {
		makeup.ID = uuid.NewString()
	}
	makeup.EnrollmentID = original.EnrollmentID
	makeup.StudentID = original.StudentID
	makeup.Status = models.SessionStatusMakeupClass
	makeup.MakeupForID = &original.ID
	makeup.CreatedAt = now
	makeup.UpdatedAt = now

	const insertSession = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSession, makeup); err != nil {
		return fmt.Errorf("create make-up session: %w", err)
	}

	const bookQuery = `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, bookQuery, original.ID, models.SessionStatusMakeupBooked, now); err != nil {
		return fmt.Errorf("mark original make-up booked: %w", err)
	}

	const resolveQuery = `UPDATE makeup_proposals SET status = $2, resolved_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, resolveQuery, proposal.ID, models.ProposalStatusApproved, now); err != nil {
		return fmt.Errorf("resolve proposal: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit direct booking: %w", err)
	}
	return nil
}
