package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-center-api/internal/models"
)

func extensionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_id", "enrollment_id", "target_enrollment_id", "requested_weeks", "granted_weeks",
		"reason", "proposed_date", "proposed_time_slot", "status", "requested_by", "reviewed_by",
		"requested_at", "reviewed_at", "review_note",
	})
}

func TestExtensionRepositoryApproveGrantsWeeks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM extension_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("ext-1").
		WillReturnRows(extensionRows().AddRow("ext-1", "ses-1", "enr-1", "enr-2", 2, nil,
			"student was sick", nil, nil, string(models.ExtensionStatusPending), "admin-1", nil, now, nil, nil))
	mock.ExpectExec("UPDATE enrollments\\s+SET extension_weeks = extension_weeks \\+ \\$2").
		WithArgs("enr-2", 2, "granted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE extension_requests\\s+SET status = \\$2").
		WithArgs("ext-1", models.ExtensionStatusApproved, 2, "admin-1", sqlmock.AnyArg(), "ok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request, replacement, err := repo.Approve(context.Background(), ApproveParams{
		RequestID:    "ext-1",
		ReviewerID:   "admin-1",
		GrantedWeeks: 2,
		ReviewNote:   "ok",
		AuditNote:    "granted",
	})
	require.NoError(t, err)
	assert.Nil(t, replacement)
	assert.Equal(t, models.ExtensionStatusApproved, request.Status)
	require.NotNil(t, request.GrantedWeeks)
	assert.Equal(t, 2, *request.GrantedWeeks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtensionRepositoryApproveWithProposedSlotReschedules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	now := time.Now()
	proposed := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM extension_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("ext-1").
		WillReturnRows(extensionRows().AddRow("ext-1", "ses-1", "enr-1", "enr-1", 1, nil,
			"student was sick", proposed, "17:30", string(models.ExtensionStatusPending), "admin-1", nil, now, nil, nil))
	mock.ExpectExec("UPDATE enrollments\\s+SET extension_weeks = extension_weeks \\+ \\$2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").
		WithArgs("ses-1").
		WillReturnRows(sessionRows().AddRow("ses-1", "enr-1", "stu-1", "tut-1",
			time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC), "16:45", "room-a",
			string(models.SessionStatusScheduled), nil, nil, "", now, now))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sessions SET status = \\$2, rescheduled_to_id = \\$3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE extension_requests\\s+SET status = \\$2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, replacement, err := repo.Approve(context.Background(), ApproveParams{
		RequestID:    "ext-1",
		ReviewerID:   "admin-1",
		GrantedWeeks: 1,
		AuditNote:    "granted",
	})
	require.NoError(t, err)
	require.NotNil(t, replacement)
	assert.Equal(t, proposed, replacement.Date)
	assert.Equal(t, "17:30", replacement.TimeSlot)
	assert.Equal(t, "room-a", replacement.Location)
	assert.Equal(t, models.SessionStatusScheduled, replacement.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtensionRepositoryApproveAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM extension_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("ext-1").
		WillReturnRows(extensionRows().AddRow("ext-1", "ses-1", "enr-1", "enr-1", 1, nil,
			"student was sick", nil, nil, string(models.ExtensionStatusRejected), "admin-1", nil, now, nil, nil))
	mock.ExpectRollback()

	_, _, err := repo.Approve(context.Background(), ApproveParams{RequestID: "ext-1", ReviewerID: "admin-1", GrantedWeeks: 1})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtensionRepositoryRejectZeroRowsAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	mock.ExpectExec("UPDATE extension_requests\\s+SET status = \\$2, reviewed_by = \\$3").
		WithArgs("ext-1", models.ExtensionStatusRejected, "admin-1", sqlmock.AnyArg(), "too late", models.ExtensionStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Reject(context.Background(), "ext-1", "admin-1", "too late")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
