package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationCompleted RegistrationStatus = "completed"
)

// Registration binds a participant to an event. At most one non-cancelled
// registration exists per (event, user).
type Registration struct {
	ID              uuid.UUID          `json:"id"`
	EventID         uuid.UUID          `json:"event_id"`
	UserID          uuid.UUID          `json:"user_id"`
	Status          RegistrationStatus `json:"status"`
	AttendanceToken string             `json:"attendance_token"`
	AdditionalInfo  string             `json:"additional_info,omitempty"`
	RegisteredAt    time.Time          `json:"registered_at"`
	ConfirmedAt     *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	TokenSentAt     *time.Time         `json:"token_sent_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// IsActive reports whether the registration still occupies a seat.
func (r *Registration) IsActive() bool { return r.Status != RegistrationCancelled }

// OwnedBy reports whether the registration belongs to userID.
func (r *Registration) OwnedBy(userID uuid.UUID) bool { return r.UserID == userID }
