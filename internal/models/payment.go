package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus for payments. Settlement is outside this service; rows are
// created pending and updated by an external gateway integration.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is the amount owed for a registration to a paid event.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	EventID        uuid.UUID     `json:"event_id"`
	UserID         uuid.UUID     `json:"user_id"`
	RegistrationID uuid.UUID     `json:"registration_id"`
	OrderID        string        `json:"order_id"`
	Amount         int64         `json:"amount"`
	Status         PaymentStatus `json:"status"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
