package models

import "time"

// ExtensionStatus captures workflow states for deadline extension requests.
type ExtensionStatus string

const (
	ExtensionStatusPending  ExtensionStatus = "PENDING"
	ExtensionStatusApproved ExtensionStatus = "APPROVED"
	ExtensionStatusRejected ExtensionStatus = "REJECTED"
)

// PolicyBand is the advisory classification of a requested week count. It is
// surfaced to reviewers and never enforced.
type PolicyBand string

const (
	PolicyBandStandard    PolicyBand = "standard"
	PolicyBandNeedsReview PolicyBand = "needs_review"
	PolicyBandSpecialCase PolicyBand = "special_case"
)

// BandForWeeks classifies a requested week count.
func BandForWeeks(weeks int) PolicyBand {
	switch {
	case weeks <= 2:
		return PolicyBandStandard
	case weeks <= 4:
		return PolicyBandNeedsReview
	default:
		return PolicyBandSpecialCase
	}
}

// ExtensionRequest asks an admin to add weeks to an enrollment's deadline,
// tied to the session that could not be scheduled in time. The grant target
// may differ from the triggering session's enrollment when the student has
// since renewed. Immutable after the decision.
type ExtensionRequest struct {
	ID                 string          `db:"id" json:"id"`
	SessionID          string          `db:"session_id" json:"session_id"`
	EnrollmentID       string          `db:"enrollment_id" json:"enrollment_id"`
	TargetEnrollmentID string          `db:"target_enrollment_id" json:"target_enrollment_id"`
	RequestedWeeks     int             `db:"requested_weeks" json:"requested_weeks"`
	GrantedWeeks       *int            `db:"granted_weeks" json:"granted_weeks,omitempty"`
	Reason             string          `db:"reason" json:"reason"`
	ProposedDate       *time.Time      `db:"proposed_date" json:"proposed_date,omitempty"`
	ProposedTimeSlot   *string         `db:"proposed_time_slot" json:"proposed_time_slot,omitempty"`
	Status             ExtensionStatus `db:"status" json:"status"`
	RequestedBy        string          `db:"requested_by" json:"requested_by"`
	ReviewedBy         *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt        time.Time       `db:"requested_at" json:"requested_at"`
	ReviewedAt         *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote         *string         `db:"review_note" json:"review_note,omitempty"`
}

// ExtensionFilter constrains extension request listings.
type ExtensionFilter struct {
	EnrollmentID string
	SessionID    string
	Status       ExtensionStatus
	RequestedBy  string
	Page         int
	PageSize     int
}
