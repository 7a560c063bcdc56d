package models

import (
	"time"

	"github.com/google/uuid"
)

// WishlistItem is an event a user saved for later.
type WishlistItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	EventID   uuid.UUID `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	Event     *Event    `json:"event,omitempty"`
}
