package models

import "time"

// RenewalStage summarises whether a successor enrollment exists and how far
// its payment has progressed.
type RenewalStage string

const (
	RenewalStageNone            RenewalStage = "NOT_RENEWED"
	RenewalStageAwaitingPayment RenewalStage = "RENEWAL_AWAITING_PAYMENT"
	RenewalStagePaid            RenewalStage = "RENEWAL_PAID"
)

// RenewalEntry is one row of the renewal tracker report. Pure read-side
// projection; it never gates scheduling decisions.
type RenewalEntry struct {
	EnrollmentID      string       `json:"enrollment_id"`
	StudentID         string       `json:"student_id"`
	TutorID           string       `json:"tutor_id"`
	StartDate         time.Time    `json:"start_date"`
	LessonsPaid       int          `json:"lessons_paid"`
	ExtensionWeeks    int          `json:"extension_weeks"`
	EffectiveEndDate  time.Time    `json:"effective_end_date"`
	SessionsCompleted int          `json:"sessions_completed"`
	PendingMakeups    int          `json:"pending_makeups"`
	Stage             RenewalStage `json:"stage"`
	SuccessorID       *string      `json:"successor_id,omitempty"`
}

// RenewalWindow bounds the report by effective end date.
type RenewalWindow struct {
	LookbackDays  int
	LookaheadDays int
}
