package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// RenewalRepository serves the read-side rows of the renewal tracker. It
// never mutates anything.
type RenewalRepository struct {
	db *sqlx.DB
}

// NewRenewalRepository constructs the repository.
func NewRenewalRepository(db *sqlx.DB) *RenewalRepository {
	return &RenewalRepository{db: db}
}

// ListRegularPaid returns every regular, paid enrollment. Window filtering by
// effective end date happens in the service, where the deadline calculator
// lives; filtering here would recreate the time-windowed-view defect.
func (r *RenewalRepository) ListRegularPaid(ctx context.Context) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE kind = $1 AND payment_status = $2 ORDER BY start_date ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, models.EnrollmentKindRegular, models.PaymentStatusPaid); err != nil {
		return nil, fmt.Errorf("list regular paid enrollments: %w", err)
	}
	return enrollments, nil
}

// SessionCounts aggregates completed and pending-make-up session counts.
type SessionCounts struct {
	EnrollmentID   string `db:"enrollment_id"`
	Completed      int    `db:"completed"`
	PendingMakeups int    `db:"pending_makeups"`
}

// CountsByEnrollments returns per-enrollment session tallies.
func (r *RenewalRepository) CountsByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]SessionCounts, error) {
	if len(enrollmentIDs) == 0 {
		return map[string]SessionCounts{}, nil
	}
	const query = `SELECT enrollment_id,
        COUNT(*) FILTER (WHERE status IN ('ATTENDED', 'ATTENDED_MAKEUP')) AS completed,
        COUNT(*) FILTER (WHERE status IN ('PENDING_MAKEUP_RESCHEDULE', 'PENDING_MAKEUP_SICK', 'PENDING_MAKEUP_WEATHER')) AS pending_makeups
        FROM sessions
        WHERE enrollment_id = ANY($1)
        GROUP BY enrollment_id`
	var rows []SessionCounts
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("count sessions per enrollment: %w", err)
	}
	counts := make(map[string]SessionCounts, len(rows))
	for _, row := range rows {
		counts[row.EnrollmentID] = row
	}
	return counts, nil
}

// PaymentStatusByIDs resolves successor payment stages.
func (r *RenewalRepository) PaymentStatusByIDs(ctx context.Context, ids []string) (map[string]models.PaymentStatus, error) {
	if len(ids) == 0 {
		return map[string]models.PaymentStatus{}, nil
	}
	const query = `SELECT id, payment_status FROM enrollments WHERE id = ANY($1)`
	var rows []struct {
		ID            string               `db:"id"`
		PaymentStatus models.PaymentStatus `db:"payment_status"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load successor payment statuses: %w", err)
	}
	statuses := make(map[string]models.PaymentStatus, len(rows))
	for _, row := range rows {
		statuses[row.ID] = row.PaymentStatus
	}
	return statuses, nil
}
