package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

// HolidayRepository persists blackout dates.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs the repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// List returns holidays, optionally bounded by a date range.
func (r *HolidayRepository) List(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, error) {
	query := "SELECT id, date, label, created_by, created_at FROM holidays"
	var conditions []string
	var args []interface{}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY date ASC"

	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// DatesBetween returns just the dates in [from, to], for calendar preloading.
func (r *HolidayRepository) DatesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	const query = `SELECT date FROM holidays WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, from, to); err != nil {
		return nil, fmt.Errorf("load holiday dates: %w", err)
	}
	return dates, nil
}

// Create inserts a holiday.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO holidays (id, date, label, created_by, created_at)
        VALUES (:id, :date, :label, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Delete removes a holiday by ID.
func (r *HolidayRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM holidays WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete holiday: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete holiday rows affected: %w", err)
	}
	return affected > 0, nil
}
