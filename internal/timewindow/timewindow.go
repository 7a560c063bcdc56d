// Package timewindow computes the check-in window of an event. It is the only
// place that turns an event's date and wall-clock times into instants.
package timewindow

import (
	"time"

	"github.com/eduevent/backend/internal/models"
)

const (
	// DefaultLead is how long before the start check-in opens.
	DefaultLead = 30 * time.Minute
	// DefaultDuration is assumed when an event has no end time.
	DefaultDuration = 8 * time.Hour
)

// Policy holds the window parameters and the zone event times are written in.
type Policy struct {
	Lead            time.Duration
	DefaultDuration time.Duration
	Location        *time.Location
}

// DefaultPolicy returns the standard 30 minute lead / 8 hour duration policy in loc.
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{Lead: DefaultLead, DefaultDuration: DefaultDuration, Location: loc}
}

// Window is the inclusive check-in interval of one event.
type Window struct {
	Start    time.Time `json:"start"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

// Phase names where an instant falls relative to a window.
type Phase string

const (
	PhaseNotOpen Phase = "not_open"
	PhaseOpen    Phase = "open"
	PhasePassed  Phase = "passed"
)

// For computes the window of ev. A missing start time means midnight of the
// event date; a missing end time means start plus the default duration.
func (p Policy) For(ev *models.Event) Window {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	lead := p.Lead
	if lead < 0 {
		lead = 0
	}
	dur := p.DefaultDuration
	if dur <= 0 {
		dur = DefaultDuration
	}

	start := ev.EventDate.Midnight(loc)
	if ev.StartTime != nil {
		start = ev.EventDate.At(*ev.StartTime, loc)
	}
	end := start.Add(dur)
	if ev.EndTime != nil {
		end = ev.EventDate.At(*ev.EndTime, loc)
	}
	return Window{Start: start, OpensAt: start.Add(-lead), ClosesAt: end}
}

// For computes ev's window with the default policy in loc.
func For(ev *models.Event, loc *time.Location) Window {
	return DefaultPolicy(loc).For(ev)
}

// IsOpen reports opensAt <= now <= closesAt.
func (w Window) IsOpen(now time.Time) bool {
	return !now.Before(w.OpensAt) && !now.After(w.ClosesAt)
}

// IsPassed reports now > closesAt.
func (w Window) IsPassed(now time.Time) bool {
	return now.After(w.ClosesAt)
}

// NotYetOpen reports now < opensAt.
func (w Window) NotYetOpen(now time.Time) bool {
	return now.Before(w.OpensAt)
}

// Phase classifies now against the window.
func (w Window) Phase(now time.Time) Phase {
	switch {
	case w.NotYetOpen(now):
		return PhaseNotOpen
	case w.IsPassed(now):
		return PhasePassed
	default:
		return PhaseOpen
	}
}
