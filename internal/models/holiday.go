package models

import "time"

// Holiday is a single blackout date. All scheduling date math consults the
// holiday set; an empty set is valid.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	Label     string    `db:"label" json:"label"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HolidayFilter narrows holiday listings to a date range.
type HolidayFilter struct {
	From *time.Time
	To   *time.Time
}
