package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// SessionRepository handles persistence of sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at`

var inactiveStatuses = []string{
	string(models.SessionStatusCancelled),
	string(models.SessionStatusPendingResched),
	string(models.SessionStatusPendingSick),
	string(models.SessionStatusPendingWeather),
}

// List returns sessions filtered by the provided criteria.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := "FROM sessions"
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, time_slot ASC LIMIT %d OFFSET %d",
		sessionColumns, base+clause, size, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindConflicts returns active sessions colliding with the candidate slot.
// Cancelled and pending-make-up sessions have vacated the slot and never
// collide.
func (r *SessionRepository) FindConflicts(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeEnrollmentID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions
        WHERE student_id = $1 AND date = $2 AND time_slot = $3 AND location = $4
        AND status <> ALL($5)`, sessionColumns)
	args := []interface{}{studentID, date, timeSlot, location, pq.Array(inactiveStatuses)}
	if excludeEnrollmentID != "" {
		query += fmt.Sprintf(" AND (enrollment_id IS NULL OR enrollment_id <> $%d)", len(args)+1)
		args = append(args, excludeEnrollmentID)
	}
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("find conflicting sessions: %w", err)
	}
	return sessions, nil
}

// Create inserts a single session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateStatus transitions a session's status. Callers validate legality; the
// partial unique indexes backstop slot exclusivity on re-activation.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, notes string) error {
	query := `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	args := []interface{}{id, status, time.Now().UTC()}
	if notes != "" {
		query = `UPDATE sessions SET status = $2, updated_at = $3, notes = $4 WHERE id = $1`
		args = append(args, notes)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// Reschedule moves a session to a new slot by creating a replacement row and
// linking it forward from the original, which is cancelled. Both writes happen
// in one transaction so a concurrent booking of the target slot fails cleanly
// on the active-slot index.
func (r *SessionRepository) Reschedule(ctx context.Context, original *models.Session, date time.Time, timeSlot, location string) (replacement *models.Session, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	replacement = &models.Session{
		ID:           uuid.NewString(),
		EnrollmentID: original.EnrollmentID,
		StudentID:    original.StudentID,
		TutorID:      original.TutorID,
		Date:         date,
		TimeSlot:     timeSlot,
		Location:     location,
		Status:       original.Status,
		Notes:        original.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	const insertQuery = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, replacement); err != nil {
		return nil, fmt.Errorf("create replacement session: %w", err)
	}

	const linkQuery = `UPDATE sessions SET status = $2, rescheduled_to_id = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, linkQuery, original.ID, models.SessionStatusCancelled, replacement.ID, now); err != nil {
		return nil, fmt.Errorf("link original session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return replacement, nil
}

// CountByEnrollmentAndStatuses returns how many of the enrollment's sessions
// are in any of the given statuses.
func (r *SessionRepository) CountByEnrollmentAndStatuses(ctx context.Context, enrollmentID string, statuses []models.SessionStatus) (int, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}
	const query = `SELECT COUNT(*) FROM sessions WHERE enrollment_id = $1 AND status = ANY($2)`
	var total int
	if err := r.db.GetContext(ctx, &total, query, enrollmentID, pq.Array(raw)); err != nil {
		return 0, fmt.Errorf("count sessions by status: %w", err)
	}
	return total, nil
}
