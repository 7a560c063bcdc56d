// Package notify delivers transactional email through the Brevo HTTP API and
// records every attempt in email_logs.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/eduevent/backend/internal/models"
)

// TokenEmail is everything the attendance-token email shows.
type TokenEmail struct {
	Type           string
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	RecipientEmail string
	RecipientName  string
	EventTitle     string
	EventDate      models.Date
	StartTime      *models.TimeOfDay
	EndTime        *models.TimeOfDay
	Location       string
	Token          string
	Status         models.RegistrationStatus
	CheckInOpensAt time.Time
}

// Attachment is a file attached to an email.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is a provider-independent email.
type Message struct {
	ToEmail     string
	ToName      string
	Subject     string
	HTML        string
	Attachments []Attachment
}
