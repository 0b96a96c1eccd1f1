package models

import "time"

// SessionStatus is the lifecycle state of one dated lesson occurrence.
type SessionStatus string

const (
	SessionStatusScheduled       SessionStatus = "SCHEDULED"
	SessionStatusAttended        SessionStatus = "ATTENDED"
	SessionStatusAttendedMakeup  SessionStatus = "ATTENDED_MAKEUP"
	SessionStatusNoShow          SessionStatus = "NO_SHOW"
	SessionStatusCancelled       SessionStatus = "CANCELLED"
	SessionStatusPendingResched  SessionStatus = "PENDING_MAKEUP_RESCHEDULE"
	SessionStatusPendingSick     SessionStatus = "PENDING_MAKEUP_SICK"
	SessionStatusPendingWeather  SessionStatus = "PENDING_MAKEUP_WEATHER"
	SessionStatusMakeupBooked    SessionStatus = "MAKEUP_BOOKED"
	SessionStatusMakeupClass     SessionStatus = "MAKEUP_CLASS"
	SessionStatusTrialClass      SessionStatus = "TRIAL_CLASS"
)

// MakeupCause classifies why a session needs a make-up.
type MakeupCause string

const (
	MakeupCauseReschedule MakeupCause = "RESCHEDULE"
	MakeupCauseSickLeave  MakeupCause = "SICK_LEAVE"
	MakeupCauseWeather    MakeupCause = "WEATHER"
)

// PendingStatusForCause maps a make-up cause to its pending status.
func PendingStatusForCause(cause MakeupCause) (SessionStatus, bool) {
	switch cause {
	case MakeupCauseReschedule:
		return SessionStatusPendingResched, true
	case MakeupCauseSickLeave:
		return SessionStatusPendingSick, true
	case MakeupCauseWeather:
		return SessionStatusPendingWeather, true
	}
	return "", false
}

// IsPendingMakeup reports whether the status is one of the pending-make-up
// variants (slot vacated, awaiting a replacement).
func (s SessionStatus) IsPendingMakeup() bool {
	switch s {
	case SessionStatusPendingResched, SessionStatusPendingSick, SessionStatusPendingWeather:
		return true
	}
	return false
}

// IsActive reports whether the status occupies its slot for conflict purposes.
// Cancelled and pending-make-up sessions free the (student, date, slot,
// location) uniqueness guard.
func (s SessionStatus) IsActive() bool {
	return s != SessionStatusCancelled && !s.IsPendingMakeup()
}

// IsTerminal reports whether no further transitions are permitted.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusAttended, SessionStatusAttendedMakeup, SessionStatusNoShow, SessionStatusCancelled:
		return true
	}
	return false
}

// Session is one concrete calendar occurrence. Sessions are never deleted;
// every state change is recorded on the row itself.
type Session struct {
	ID              string        `db:"id" json:"id"`
	EnrollmentID    *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	StudentID       string        `db:"student_id" json:"student_id"`
	TutorID         string        `db:"tutor_id" json:"tutor_id"`
	Date            time.Time     `db:"date" json:"date"`
	TimeSlot        string        `db:"time_slot" json:"time_slot"`
	Location        string        `db:"location" json:"location"`
	Status          SessionStatus `db:"status" json:"status"`
	MakeupForID     *string       `db:"makeup_for_id" json:"makeup_for_id,omitempty"`
	RescheduledToID *string       `db:"rescheduled_to_id" json:"rescheduled_to_id,omitempty"`
	Notes           string        `db:"notes" json:"notes"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	EnrollmentID string
	StudentID    string
	TutorID      string
	Status       SessionStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// PlannedSession is one entry of a holiday-aware expansion. Deferred marks a
// lesson pushed off its natural week; DeferredFrom is the holiday that
// displaced it.
type PlannedSession struct {
	Date         time.Time  `json:"date"`
	Deferred     bool       `json:"deferred"`
	DeferredFrom *time.Time `json:"deferred_from,omitempty"`
}
