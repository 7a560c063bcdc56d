package models

import (
	"time"

	"github.com/google/uuid"
)

// EventCategory groups events in the public catalogue.
type EventCategory string

const (
	CategoryTechnology EventCategory = "teknologi"
	CategoryArtCulture EventCategory = "seni_budaya"
	CategorySports     EventCategory = "olahraga"
	CategoryAcademic   EventCategory = "akademik"
	CategorySocial     EventCategory = "sosial"
)

// Categories lists every accepted category in display order.
var Categories = []EventCategory{
	CategoryTechnology, CategoryArtCulture, CategorySports, CategoryAcademic, CategorySocial,
}

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Event is a scheduled, optionally paid, optionally capacity-limited happening.
type Event struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	EventDate       Date          `json:"event_date"`
	StartTime       *TimeOfDay    `json:"start_time,omitempty"`
	EndTime         *TimeOfDay    `json:"end_time,omitempty"`
	Location        string        `json:"location"`
	Category        EventCategory `json:"category"`
	Organizer       string        `json:"organizer"`
	IsPublished     bool          `json:"is_published"`
	Price           int64         `json:"price"`
	MaxParticipants *int          `json:"max_participants,omitempty"`
	FlyerPath       string        `json:"flyer_path,omitempty"`
	CreatedBy       *uuid.UUID    `json:"created_by,omitempty"`
	RegisteredCount int           `json:"registered_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsFree reports whether registration needs no payment.
func (e *Event) IsFree() bool { return e.Price <= 0 }

// IsFull reports whether active registrations have reached capacity. Events
// without a capacity are never full.
func (e *Event) IsFull(active int) bool {
	return e.MaxParticipants != nil && active >= *e.MaxParticipants
}

// CanRegister reports whether a new registration is accepted given the count of
// non-cancelled registrations.
func (e *Event) CanRegister(active int) bool {
	return e.IsPublished && !e.IsFull(active)
}

// RemainingSeats returns free seats, or -1 when the event is unlimited.
func (e *Event) RemainingSeats(active int) int {
	if e.MaxParticipants == nil {
		return -1
	}
	if n := *e.MaxParticipants - active; n > 0 {
		return n
	}
	return 0
}
