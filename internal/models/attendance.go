package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus records how a participant showed up.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Attendance is the single check-in record of a registration.
type Attendance struct {
	ID             uuid.UUID        `json:"id"`
	EventID        uuid.UUID        `json:"event_id"`
	UserID         uuid.UUID        `json:"user_id"`
	RegistrationID uuid.UUID        `json:"registration_id"`
	Status         AttendanceStatus `json:"status"`
	CheckedInAt    time.Time        `json:"checked_in_at"`
	TokenEntered   string           `json:"-"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IsPresent reports whether the attendance counts as having attended.
func (a *Attendance) IsPresent() bool { return a != nil && a.Status == AttendancePresent }
