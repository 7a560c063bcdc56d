package analytics

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/eduevent/backend/internal/registrations"
)

var participantHeader = []string{
	"Registration ID", "Name", "Email", "Phone", "Status", "Attendance Token", "Registered At", "Checked In At",
}

// WriteParticipantsCSV writes one row per registration. Times are rendered in loc.
func WriteParticipantsCSV(w io.Writer, list []registrations.Participant, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(participantHeader); err != nil {
		return err
	}
	for _, p := range list {
		checkedIn := ""
		if p.CheckedInAt != nil {
			checkedIn = p.CheckedInAt.In(loc).Format("2006-01-02 15:04")
		}
		if err := cw.Write([]string{
			p.RegistrationID.String(),
			p.FullName,
			p.Email,
			p.Phone,
			string(p.Status),
			p.AttendanceToken,
			p.RegisteredAt.In(loc).Format("2006-01-02 15:04"),
			checkedIn,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
