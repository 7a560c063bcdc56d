package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificateStatus tracks artifact generation.
type CertificateStatus string

const (
	CertificatePending CertificateStatus = "pending"
	CertificateIssued  CertificateStatus = "issued"
)

// Certificate is the proof of attendance for a registration.
type Certificate struct {
	ID             uuid.UUID         `json:"id"`
	EventID        uuid.UUID         `json:"event_id"`
	UserID         uuid.UUID         `json:"user_id"`
	RegistrationID uuid.UUID         `json:"registration_id"`
	SerialNumber   string            `json:"serial_number"`
	Status         CertificateStatus `json:"status"`
	IssuedAt       *time.Time        `json:"issued_at,omitempty"`
	ArtifactPath   string            `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}
