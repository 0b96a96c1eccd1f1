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

// ErrAlreadyRenewed signals that the predecessor already has a successor
// enrollment linked.
var ErrAlreadyRenewed = errors.New("enrollment already renewed")

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, tutor_id, kind, weekly_day, time_slot, location, start_date,
        lessons_paid, extension_weeks, payment_status, renewed_from_id, renewed_to_id, notes,
        created_by, created_at, updated_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "start_date",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveForSlot returns the non-cancelled enrollment currently occupying a
// student's regular weekly slot, preferring the newest start date. Used to
// resolve the grant target of extension requests after renewals.
func (r *EnrollmentRepository) FindActiveForSlot(ctx context.Context, studentID string, weeklyDay time.Weekday, timeSlot, location string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND weekly_day = $2 AND time_slot = $3 AND location = $4 AND payment_status <> $5
        ORDER BY start_date DESC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, weeklyDay, timeSlot, location, models.PaymentStatusCancelled); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CreateWithSessions persists an enrollment and its generated sessions in one
// transaction. The active-slot unique indexes guard against concurrent
// duplicates.
func (r *EnrollmentRepository) CreateWithSessions(ctx context.Context, enrollment *models.Enrollment, sessions []models.Session) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.PaymentStatus == "" {
		enrollment.PaymentStatus = models.PaymentStatusPending
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, tutor_id, kind, weekly_day, time_slot, location,
        start_date, lessons_paid, extension_weeks, payment_status, renewed_from_id, renewed_to_id, notes, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :tutor_id, :kind, :weekly_day, :time_slot, :location,
        :start_date, :lessons_paid, :extension_weeks, :payment_status, :renewed_from_id, :renewed_to_id, :notes, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	const insertSession = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	for i := range sessions {
		s := &sessions[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.EnrollmentID = &enrollment.ID
		s.CreatedAt = now
		s.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, insertSession, s); err != nil {
			return fmt.Errorf("create session %s: %w", s.Date.Format("2006-01-02"), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// UpdatePaymentStatus moves the enrollment through its payment lifecycle.
func (r *EnrollmentRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE enrollments SET payment_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// CreateRenewal inserts a successor enrollment and links the chain in one
// transaction.
func (r *EnrollmentRepository) CreateRenewal(ctx context.Context, predecessorID string, successor *models.Enrollment, sessions []models.Session) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin renewal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var predecessor models.Enrollment
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE", enrollmentColumns)
	if err = tx.GetContext(ctx, &predecessor, query, predecessorID); err != nil {
		return fmt.Errorf("lock predecessor enrollment: %w", err)
	}
	if predecessor.RenewedToID != nil {
		err = ErrAlreadyRenewed
		return err
	}

	now := time.Now().UTC()
	if successor.ID == "" {
		successor.ID = uuid.NewString()
	}
	successor.RenewedFromID = &predecessorID
	if successor.PaymentStatus == "" {
		successor.PaymentStatus = models.PaymentStatusPending
	}
	successor.CreatedAt = now
	successor.UpdatedAt = now

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, tutor_id, kind, weekly_day, time_slot, location,
        start_date, lessons_paid, extension_weeks, payment_status, renewed_from_id, renewed_to_id, notes, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :tutor_id, :kind, :weekly_day, :time_slot, :location,
        :start_date, :lessons_paid, :extension_weeks, :payment_status, :renewed_from_id, :renewed_to_id, :notes, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, successor); err != nil {
		return fmt.Errorf("create successor enrollment: %w", err)
	}

	const linkQuery = `UPDATE enrollments SET renewed_to_id = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, linkQuery, predecessorID, successor.ID, now); err != nil {
		return fmt.Errorf("link predecessor enrollment: %w", err)
	}

	const insertSession = `INSERT INTO sessions (id, enrollment_id, student_id, tutor_id, date, time_slot, location,
        status, makeup_for_id, rescheduled_to_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :date, :time_slot, :location,
        :status, :makeup_for_id, :rescheduled_to_id, :notes, :created_at, :updated_at)`
	for i := range sessions {
		s := &sessions[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.EnrollmentID = &successor.ID
		s.CreatedAt = now
		s.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, insertSession, s); err != nil {
			return fmt.Errorf("create renewal session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit renewal: %w", err)
	}
	return nil
}
