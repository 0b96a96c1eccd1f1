package models

import "time"

// ProposalMode distinguishes concrete slot offers from a delegation to the
// enrollment's primary tutor.
type ProposalMode string

const (
	ProposalModeSpecificSlots ProposalMode = "SPECIFIC_SLOTS"
	ProposalModeNeedsInput    ProposalMode = "NEEDS_INPUT"
)

// ProposalStatus is derived from the slots: approved when any slot is
// approved, rejected when all slots are rejected.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "PENDING"
	ProposalStatusApproved ProposalStatus = "APPROVED"
	ProposalStatusRejected ProposalStatus = "REJECTED"
)

// SlotStatus is a single candidate slot's decision state.
type SlotStatus string

const (
	SlotStatusPending  SlotStatus = "PENDING"
	SlotStatusApproved SlotStatus = "APPROVED"
	SlotStatusRejected SlotStatus = "REJECTED"
)

// MakeupProposal offers up to three candidate make-up slots for one
// pending-make-up session, or flags the primary tutor to choose directly.
// At most one unresolved proposal may exist per session.
type MakeupProposal struct {
	ID         string         `db:"id" json:"id"`
	SessionID  string         `db:"session_id" json:"session_id"`
	Mode       ProposalMode   `db:"mode" json:"mode"`
	Status     ProposalStatus `db:"status" json:"status"`
	ProposedBy string         `db:"proposed_by" json:"proposed_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// MakeupProposalSlot is one fully-specified candidate awaiting its target
// tutor's decision.
type MakeupProposalSlot struct {
	ID           string     `db:"id" json:"id"`
	ProposalID   string     `db:"proposal_id" json:"proposal_id"`
	Date         time.Time  `db:"date" json:"date"`
	TimeSlot     string     `db:"time_slot" json:"time_slot"`
	TutorID      string     `db:"tutor_id" json:"tutor_id"`
	Location     string     `db:"location" json:"location"`
	Status       SlotStatus `db:"status" json:"status"`
	DecidedBy    *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt    *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	RejectReason *string    `db:"reject_reason" json:"reject_reason,omitempty"`
}

// MakeupProposalDetail bundles a proposal with its slots.
type MakeupProposalDetail struct {
	MakeupProposal
	Slots []MakeupProposalSlot `json:"slots"`
}

// ProposalFilter constrains proposal listings.
type ProposalFilter struct {
	SessionID string
	TutorID   string
	Status    ProposalStatus
	Page      int
	PageSize  int
}
