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

func proposalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_id", "mode", "status", "proposed_by", "created_at", "resolved_at",
	})
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "proposal_id", "date", "time_slot", "tutor_id", "location", "status",
		"decided_by", "decided_at", "reject_reason",
	})
}

func TestMakeupRepositoryApproveSlotSettlesProposal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	now := time.Now()
	slotDate := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposal_slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "prop-1", slotDate, "17:30", "tut-2", "room-b",
			string(models.SlotStatusPending), nil, nil, nil))
	mock.ExpectQuery("SELECT .+ FROM makeup_proposals WHERE id = \\$1 FOR UPDATE").
		WithArgs("prop-1").
		WillReturnRows(proposalRows().AddRow("prop-1", "ses-1", string(models.ProposalModeSpecificSlots),
			string(models.ProposalStatusPending), "admin-1", now, nil))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").
		WithArgs("ses-1").
		WillReturnRows(sessionRows().AddRow("ses-1", "enr-1", "stu-1", "tut-1",
			time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC), "16:45", "room-a",
			string(models.SessionStatusPendingSick), nil, nil, "", now, now))
	mock.ExpectExec("UPDATE makeup_proposal_slots SET status = \\$2, decided_by = \\$3, decided_at = \\$4 WHERE id = \\$1").
		WithArgs("slot-1", models.SlotStatusApproved, "tut-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE makeup_proposal_slots SET status = \\$2, decided_at = \\$3\\s+WHERE proposal_id = \\$1 AND id <> \\$4").
		WithArgs("prop-1", models.SlotStatusRejected, sqlmock.AnyArg(), "slot-1", models.SlotStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE makeup_proposals SET status = \\$2, resolved_at = \\$3 WHERE id = \\$1").
		WithArgs("prop-1", models.ProposalStatusApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sessions SET status = \\$2, updated_at = \\$3 WHERE id = \\$1").
		WithArgs("ses-1", models.SessionStatusMakeupBooked, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	makeup, err := repo.ApproveSlot(context.Background(), ApproveSlotParams{SlotID: "slot-1", DecidedBy: "tut-2"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusMakeupClass, makeup.Status)
	assert.Equal(t, "tut-2", makeup.TutorID)
	assert.Equal(t, slotDate, makeup.Date)
	require.NotNil(t, makeup.MakeupForID)
	assert.Equal(t, "ses-1", *makeup.MakeupForID)
	require.NotNil(t, makeup.EnrollmentID)
	assert.Equal(t, "enr-1", *makeup.EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryApproveSlotAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposal_slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "prop-1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			"17:30", "tut-2", "room-b", string(models.SlotStatusRejected), "tut-2", time.Now(), nil))
	mock.ExpectRollback()

	_, err := repo.ApproveSlot(context.Background(), ApproveSlotParams{SlotID: "slot-1", DecidedBy: "tut-2"})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryApproveSlotLosesRaceOnProposal(t *testing.T) {
	// The slot is still pending but a concurrent booking already resolved the
	// parent; the locked proposal row decides the tie-break.
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposal_slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "prop-1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			"17:30", "tut-2", "room-b", string(models.SlotStatusPending), nil, nil, nil))
	mock.ExpectQuery("SELECT .+ FROM makeup_proposals WHERE id = \\$1 FOR UPDATE").
		WithArgs("prop-1").
		WillReturnRows(proposalRows().AddRow("prop-1", "ses-1", string(models.ProposalModeSpecificSlots),
			string(models.ProposalStatusApproved), "admin-1", now, now))
	mock.ExpectRollback()

	_, err := repo.ApproveSlot(context.Background(), ApproveSlotParams{SlotID: "slot-1", DecidedBy: "tut-2"})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryRejectLastSlotClosesProposal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposal_slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "prop-1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			"17:30", "tut-2", "room-b", string(models.SlotStatusPending), nil, nil, nil))
	mock.ExpectExec("UPDATE makeup_proposal_slots SET status = \\$2, decided_by = \\$3, decided_at = \\$4, reject_reason = \\$5").
		WithArgs("slot-1", models.SlotStatusRejected, "tut-2", sqlmock.AnyArg(), "unavailable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM makeup_proposal_slots WHERE proposal_id = \\$1").
		WithArgs("prop-1", models.SlotStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE makeup_proposals SET status = \\$2, resolved_at = \\$3 WHERE id = \\$1 AND status = \\$4").
		WithArgs("prop-1", models.ProposalStatusRejected, sqlmock.AnyArg(), models.ProposalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rejected, err := repo.RejectSlot(context.Background(), "slot-1", "tut-2", "unavailable")
	require.NoError(t, err)
	assert.True(t, rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryRejectWithPendingSiblingsKeepsProposalOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposal_slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "prop-1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			"17:30", "tut-2", "room-b", string(models.SlotStatusPending), nil, nil, nil))
	mock.ExpectExec("UPDATE makeup_proposal_slots SET status = \\$2, decided_by = \\$3, decided_at = \\$4, reject_reason = \\$5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM makeup_proposal_slots WHERE proposal_id = \\$1").
		WithArgs("prop-1", models.SlotStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	rejected, err := repo.RejectSlot(context.Background(), "slot-1", "tut-2", "")
	require.NoError(t, err)
	assert.False(t, rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryBookDirectCreatesMakeup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposals WHERE id = \\$1 FOR UPDATE").
		WithArgs("prop-1").
		WillReturnRows(proposalRows().AddRow("prop-1", "ses-1", string(models.ProposalModeNeedsInput),
			string(models.ProposalStatusPending), "admin-1", now, nil))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").
		WithArgs("ses-1").
		WillReturnRows(sessionRows().AddRow("ses-1", "enr-1", "stu-1", "tut-1",
			time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC), "16:45", "room-a",
			string(models.SessionStatusPendingWeather), nil, nil, "", now, now))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sessions SET status = \\$2, updated_at = \\$3 WHERE id = \\$1").
		WithArgs("ses-1", models.SessionStatusMakeupBooked, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE makeup_proposals SET status = \\$2, resolved_at = \\$3 WHERE id = \\$1").
		WithArgs("prop-1", models.ProposalStatusApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	makeup := &models.Session{
		TutorID:  "tut-1",
		Date:     time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		TimeSlot: "18:00",
		Location: "room-c",
	}
	err := repo.BookDirect(context.Background(), "prop-1", makeup)
	require.NoError(t, err)
	assert.NotEmpty(t, makeup.ID)
	assert.Equal(t, models.SessionStatusMakeupClass, makeup.Status)
	require.NotNil(t, makeup.EnrollmentID)
	assert.Equal(t, "enr-1", *makeup.EnrollmentID)
	require.NotNil(t, makeup.MakeupForID)
	assert.Equal(t, "ses-1", *makeup.MakeupForID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryBookDirectAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM makeup_proposals WHERE id = \\$1 FOR UPDATE").
		WithArgs("prop-1").
		WillReturnRows(proposalRows().AddRow("prop-1", "ses-1", string(models.ProposalModeNeedsInput),
			string(models.ProposalStatusApproved), "admin-1", now, now))
	mock.ExpectRollback()

	err := repo.BookDirect(context.Background(), "prop-1", &models.Session{})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
