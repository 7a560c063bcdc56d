// Package history derives a participant's per-event overall status and the
// statistics shown on their history page.
package history

import (
	"time"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
)

// OverallStatus is the single status a participant sees for one registration.
type OverallStatus string

const (
	StatusUpcoming  OverallStatus = "upcoming"
	StatusAttended  OverallStatus = "attended"
	StatusCompleted OverallStatus = "completed"
	StatusMissed    OverallStatus = "missed"
	StatusCancelled OverallStatus = "cancelled"
)

// Resolve applies the first matching rule: cancelled, completed (present and an
// issued certificate), attended (present), missed (window passed with no
// attendance), upcoming.
func Resolve(reg *models.Registration, att *models.Attendance, cert *models.Certificate, w timewindow.Window, now time.Time) OverallStatus {
	switch {
	case reg.Status == models.RegistrationCancelled:
		return StatusCancelled
	case att.IsPresent() && cert != nil && cert.Status == models.CertificateIssued:
		return StatusCompleted
	case att.IsPresent():
		return StatusAttended
	case att == nil && w.IsPassed(now):
		return StatusMissed
	default:
		return StatusUpcoming
	}
}

// Statistics counts registrations by overall status.
type Statistics struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Attended  int `json:"attended"`
	Completed int `json:"completed"`
	Missed    int `json:"missed"`
	Cancelled int `json:"cancelled"`
}

// Aggregate folds statuses into Statistics. Total counts every entry.
func Aggregate(statuses []OverallStatus) Statistics {
	st := Statistics{Total: len(statuses)}
	for _, s := range statuses {
		switch s {
		case StatusUpcoming:
			st.Upcoming++
		case StatusAttended:
			st.Attended++
		case StatusCompleted:
			st.Completed++
		case StatusMissed:
			st.Missed++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	return st
}
