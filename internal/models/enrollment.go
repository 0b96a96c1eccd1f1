package models

import "time"

// EnrollmentKind distinguishes recurring blocks from single-shot lessons.
type EnrollmentKind string

const (
	EnrollmentKindRegular EnrollmentKind = "REGULAR"
	EnrollmentKindTrial   EnrollmentKind = "TRIAL"
	EnrollmentKindOneTime EnrollmentKind = "ONE_TIME"
)

// PaymentStatus captures the payment lifecycle of an enrollment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING_PAYMENT"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Enrollment is a purchased block of weekly lessons for one student/tutor pair
// on a fixed weekly day, time slot and location. Extension weeks only ever
// grow; enrollments are cancelled, never deleted.
type Enrollment struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	TutorID        string         `db:"tutor_id" json:"tutor_id"`
	Kind           EnrollmentKind `db:"kind" json:"kind"`
	WeeklyDay      time.Weekday   `db:"weekly_day" json:"weekly_day"`
	TimeSlot       string         `db:"time_slot" json:"time_slot"`
	Location       string         `db:"location" json:"location"`
	StartDate      time.Time      `db:"start_date" json:"start_date"`
	LessonsPaid    int            `db:"lessons_paid" json:"lessons_paid"`
	ExtensionWeeks int            `db:"extension_weeks" json:"extension_weeks"`
	PaymentStatus  PaymentStatus  `db:"payment_status" json:"payment_status"`
	RenewedFromID  *string        `db:"renewed_from_id" json:"renewed_from_id,omitempty"`
	RenewedToID    *string        `db:"renewed_to_id" json:"renewed_to_id,omitempty"`
	Notes          string         `db:"notes" json:"notes"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the enrollment still occupies its weekly slot.
func (e *Enrollment) IsActive() bool {
	return e.PaymentStatus != PaymentStatusCancelled
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID     string
	TutorID       string
	Kind          EnrollmentKind
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
