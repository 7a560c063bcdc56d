package models

import (
	"time"

	"github.com/google/uuid"
)

// Banner is a promotional image shown on the public landing page.
type Banner struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImagePath   string    `json:"image_path"`
	ImageURL    string    `json:"image_url,omitempty"`
	ButtonText  string    `json:"button_text,omitempty"`
	ButtonLink  string    `json:"button_link,omitempty"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
