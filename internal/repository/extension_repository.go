package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// ErrAlreadyResolved signals that a workflow record has already reached a
// terminal state; callers treat it as "already handled".
var ErrAlreadyResolved = errors.New("workflow record already resolved")

// ExtensionRepository persists deadline extension requests.
type ExtensionRepository struct {
	db *sqlx.DB
}

// NewExtensionRepository constructs the repository.
func NewExtensionRepository(db *sqlx.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

const extensionColumns = `id, session_id, enrollment_id, target_enrollment_id, requested_weeks, granted_weeks,
        reason, proposed_date, proposed_time_slot, status, requested_by, reviewed_by, requested_at, reviewed_at, review_note`

// Create inserts a pending request.
func (r *ExtensionRepository) Create(ctx context.Context, request *models.ExtensionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.ExtensionStatusPending
	}
	const query = `INSERT INTO extension_requests (id, session_id, enrollment_id, target_enrollment_id, requested_weeks,
        granted_weeks, reason, proposed_date, proposed_time_slot, status, requested_by, reviewed_by, requested_at, reviewed_at, review_note)
        VALUES (:id, :session_id, :enrollment_id, :target_enrollment_id, :requested_weeks,
        :granted_weeks, :reason, :proposed_date, :proposed_time_slot, :status, :requested_by, :reviewed_by, :requested_at, :reviewed_at, :review_note)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create extension request: %w", err)
	}
	return nil
}

// FindByID returns a request by its ID.
func (r *ExtensionRepository) FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM extension_requests WHERE id = $1", extensionColumns)
	var request models.ExtensionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests filtered by the provided criteria.
func (r *ExtensionRepository) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error) {
	base := "FROM extension_requests"
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("(enrollment_id = $%d OR target_enrollment_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.RequestedBy != "" {
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY requested_at DESC LIMIT %d OFFSET %d",
		extensionColumns, base+clause, size, offset)
	var requests []models.ExtensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list extension requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count extension requests: %w", err)
	}
	return requests, total, nil
}

// ApproveParams carries everything the approval transaction writes.
type ApproveParams struct {
	RequestID    string
	ReviewerID   string
	GrantedWeeks int
	ReviewNote   string
	AuditNote    string
}

// Approve applies the grant atomically: lock the request, bump the target
// enrollment's extension-weeks counter with an audit note, move the triggering
// session when a reschedule was proposed, and mark the request approved. A
// request that is no longer pending returns ErrAlreadyResolved.
func (r *ExtensionRepository) Approve(ctx context.Context, params ApproveParams) (request *models.ExtensionRequest, replacement *models.Session, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req models.ExtensionRequest
	lockQuery := fmt.Sprintf("SELECT %s FROM extension_requests WHERE id = $1 FOR UPDATE", extensionColumns)
	if err = tx.GetContext(ctx, &req, lockQuery, params.RequestID); err != nil {
		return nil, nil, fmt.Errorf("lock extension request: %w", err)
	}
	if req.Status != models.ExtensionStatusPending {
		err = ErrAlreadyResolved
		return nil, nil, err
	}

	now := time.Now().UTC()

	const grantQuery = `UPDATE enrollments
        SET extension_weeks = extension_weeks + $2,
            notes = CASE WHEN notes = '' THEN $3 ELSE notes || E'\n' || $3 END,
            updated_at = $4
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, grantQuery, req.TargetEnrollmentID, params.GrantedWeeks, params.AuditNote, now); err != nil {
		return nil, nil, fmt.Errorf("grant extension weeks: %w", err)
	}

	if req.ProposedDate != nil && req.ProposedTimeSlot != nil {
		var original models.Session
		sessQuery := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1 FOR UPDATE", sessionColumns)
		if err = tx.GetContext(ctx, &original, sessQuery, req.SessionID); err != nil {
			return nil, nil, fmt.Errorf("lock triggering session: %w", err)
		}
		replacement = &models.Session{
			ID:           uuid.NewString(),
			EnrollmentID: original.EnrollmentID,
			StudentID:    original.StudentID,
			TutorID:      original.TutorID,
			Date:         *req.ProposedDate,
			TimeSlot:     *req.ProposedTimeSlot,
			Location:     original.Location,
			Status:       models.SessionStatusScheduled,
			Notes:        original.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		const insertQuery = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
            status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
            VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
            :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertQuery, replacement); err != nil {
			return nil, nil, fmt.Errorf("create rescheduled session: %w", err)
		}
		const linkQuery = `UPDATE sessions SET status = $2, rescheduled_to_id = $3, updated_at = $4 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, linkQuery, original.ID, models.SessionStatusCancelled, replacement.ID, now); err != nil {
			return nil, nil, fmt.Errorf("link rescheduled session: %w", err)
		}
	}

	const decideQuery = `UPDATE extension_requests
        SET status = $2, granted_weeks = $3, reviewed_by = $4, reviewed_at = $5, review_note = $6
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, decideQuery, req.ID, models.ExtensionStatusApproved, params.GrantedWeeks, params.ReviewerID, now, params.ReviewNote); err != nil {
		return nil, nil, fmt.Errorf("approve extension request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit approval: %w", err)
	}

	granted := params.GrantedWeeks
	req.Status = models.ExtensionStatusApproved
	req.GrantedWeeks = &granted
	req.ReviewedBy = &params.ReviewerID
	req.ReviewedAt = &now
	if params.ReviewNote != "" {
		note := params.ReviewNote
		req.ReviewNote = &note
	}
	return &req, replacement, nil
}

// Reject records the decision without any other side effects. Only a pending
// request can be rejected.
func (r *ExtensionRepository) Reject(ctx context.Context, id, reviewerID, reason string) (*models.ExtensionRequest, error) {
	now := time.Now().UTC()
	const query = `UPDATE extension_requests
        SET status = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5
        WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, models.ExtensionStatusRejected, reviewerID, now, reason, models.ExtensionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("reject extension request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reject extension request rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrAlreadyResolved
	}
	return r.FindByID(ctx, id)
}
