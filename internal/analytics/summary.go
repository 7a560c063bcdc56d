// Package analytics builds the admin dashboard and participant exports.
package analytics

import (
	"math"

	"github.com/google/uuid"

	"github.com/eduevent/backend/internal/models"
)

// Totals are the raw counts behind the dashboard.
type Totals struct {
	Events                int
	PublishedEvents       int
	Registrations         int // non-cancelled
	Attendances           int
	Attendees             int // distinct users with a present attendance
	Revenue               int64
	EventsThisYear        int
	RegistrationsThisYear int
}

// MonthCount is one bucket of a monthly chart.
type MonthCount struct {
	Month int `json:"month"`
	Count int `json:"count"`
}

// TopEvent is an event ranked by non-cancelled registrations.
type TopEvent struct {
	ID              uuid.UUID            `json:"id"`
	Title           string               `json:"title"`
	EventDate       models.Date          `json:"event_date"`
	Category        models.EventCategory `json:"category"`
	RegisteredCount int                  `json:"registrations_count"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Year                  int          `json:"year"`
	TotalEvents           int          `json:"total_events"`
	PublishedEvents       int          `json:"published_events"`
	TotalRegistrations    int          `json:"total_registrations"`
	TotalAttendances      int          `json:"total_attendances"`
	TotalAttendees        int          `json:"total_attendees"`
	AttendanceRate        float64      `json:"attendance_rate"`
	TotalRevenue          int64        `json:"total_revenue"`
	AdminRevenue          int64        `json:"admin_revenue"`
	OrganizerRevenue      int64        `json:"organizer_revenue"`
	EventsThisYear        int          `json:"events_this_year"`
	RegistrationsThisYear int          `json:"registrations_this_year"`
	MonthlyEvents         []MonthCount `json:"monthly_events"`
	MonthlyAttendees      []MonthCount `json:"monthly_attendees"`
	TopEvents             []TopEvent   `json:"top_events"`
}

// AttendanceRate returns attendees as a percentage of registrations, rounded
// to one decimal. It is 0 when there are no registrations.
func AttendanceRate(attendees, registrations int) float64 {
	if registrations <= 0 {
		return 0
	}
	return math.Round(float64(attendees)/float64(registrations)*1000) / 10
}

// SplitRevenue divides total between the platform (adminShare, clamped to
// [0,1]) and the organizers. The parts always add up to total.
func SplitRevenue(total int64, adminShare float64) (admin, organizer int64) {
	switch {
	case adminShare < 0:
		adminShare = 0
	case adminShare > 1:
		adminShare = 1
	}
	admin = int64(math.Round(float64(total) * adminShare))
	return admin, total - admin
}

// Summarize folds raw totals into the dashboard figures.
func Summarize(t Totals, adminShare float64) Dashboard {
	admin, organizer := SplitRevenue(t.Revenue, adminShare)
	return Dashboard{
		TotalEvents:           t.Events,
		PublishedEvents:       t.PublishedEvents,
		TotalRegistrations:    t.Registrations,
		TotalAttendances:      t.Attendances,
		TotalAttendees:        t.Attendees,
		AttendanceRate:        AttendanceRate(t.Attendees, t.Registrations),
		TotalRevenue:          t.Revenue,
		AdminRevenue:          admin,
		OrganizerRevenue:      organizer,
		EventsThisYear:        t.EventsThisYear,
		RegistrationsThisYear: t.RegistrationsThisYear,
	}
}

// Months turns per-month counts (index 0 is January) into chart buckets.
func Months(counts [12]int) []MonthCount {
	out := make([]MonthCount, 12)
	for i, n := range counts {
		out[i] = MonthCount{Month: i + 1, Count: n}
	}
	return out
}
