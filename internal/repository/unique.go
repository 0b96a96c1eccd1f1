package repository

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// UniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally matched against a specific constraint name. The
// partial unique indexes are the last line of defense for slot exclusivity;
// services translate these into domain errors rather than leaking them.
func UniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// Constraint names from the migrations.
const (
	ConstraintActiveSlot       = "uq_sessions_active_slot"
	ConstraintActiveMakeup     = "uq_sessions_active_makeup"
	ConstraintActiveEnrollment = "uq_enrollments_active_slot"
	ConstraintPendingProposal  = "uq_makeup_proposals_pending"
	ConstraintHolidayDate      = "holidays_date_key"
)
