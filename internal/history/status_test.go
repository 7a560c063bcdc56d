package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
)

func TestResolvePrecedence(t *testing.T) {
	w := timewindow.Window{
		Start:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		OpensAt:  time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
		ClosesAt: time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC),
	}
	before := w.OpensAt.Add(-time.Hour)
	after := w.ClosesAt.Add(time.Minute)

	present := &models.Attendance{Status: models.AttendancePresent}
	issued := &models.Certificate{Status: models.CertificateIssued}
	pendingCert := &models.Certificate{Status: models.CertificatePending}

	reg := func(st models.RegistrationStatus) *models.Registration {
		return &models.Registration{Status: st}
	}

	cases := []struct {
		name string
		reg  *models.Registration
		att  *models.Attendance
		cert *models.Certificate
		now  time.Time
		want OverallStatus
	}{
		{"cancelled wins over everything", reg(models.RegistrationCancelled), present, issued, after, StatusCancelled},
		{"cancelled before the event", reg(models.RegistrationCancelled), nil, nil, before, StatusCancelled},
		{"present with issued certificate", reg(models.RegistrationCompleted), present, issued, after, StatusCompleted},
		{"present with pending certificate", reg(models.RegistrationCompleted), present, pendingCert, after, StatusAttended},
		{"present without certificate", reg(models.RegistrationCompleted), present, nil, before, StatusAttended},
		{"passed without attendance", reg(models.RegistrationConfirmed), nil, nil, after, StatusMissed},
		{"pending passed without attendance", reg(models.RegistrationPending), nil, nil, after, StatusMissed},
		{"confirmed before the window", reg(models.RegistrationConfirmed), nil, nil, before, StatusUpcoming},
		{"confirmed at closing instant", reg(models.RegistrationConfirmed), nil, nil, w.ClosesAt, StatusUpcoming},
		{"pending before the event", reg(models.RegistrationPending), nil, nil, before, StatusUpcoming},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.reg, tc.att, tc.cert, w, tc.now))
		})
	}
}

func TestResolveIsExhaustive(t *testing.T) {
	w := timewindow.Window{ClosesAt: time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)}
	valid := map[OverallStatus]bool{
		StatusUpcoming: true, StatusAttended: true, StatusCompleted: true, StatusMissed: true, StatusCancelled: true,
	}
	statuses := []models.RegistrationStatus{
		models.RegistrationPending, models.RegistrationConfirmed, models.RegistrationCancelled, models.RegistrationCompleted,
	}
	atts := []*models.Attendance{nil, {Status: models.AttendancePresent}}
	certs := []*models.Certificate{nil, {Status: models.CertificatePending}, {Status: models.CertificateIssued}}
	nows := []time.Time{w.ClosesAt.Add(-time.Hour), w.ClosesAt.Add(time.Hour)}

	for _, st := range statuses {
		for _, a := range atts {
			for _, c := range certs {
				for _, now := range nows {
					got := Resolve(&models.Registration{Status: st}, a, c, w, now)
					assert.True(t, valid[got], "unexpected status %q", got)
					if st == models.RegistrationCancelled {
						assert.Equal(t, StatusCancelled, got)
					}
					if got == StatusMissed {
						assert.Nil(t, a)
						assert.True(t, w.IsPassed(now))
					}
				}
			}
		}
	}
}

func TestAggregate(t *testing.T) {
	st := Aggregate([]OverallStatus{
		StatusUpcoming, StatusUpcoming, StatusAttended, StatusCompleted, StatusMissed, StatusCancelled, StatusCancelled,
	})
	assert.Equal(t, Statistics{Total: 7, Upcoming: 2, Attended: 1, Completed: 1, Missed: 1, Cancelled: 2}, st)
	assert.Equal(t, st.Total, st.Upcoming+st.Attended+st.Completed+st.Missed+st.Cancelled)

	assert.Equal(t, Statistics{}, Aggregate(nil))
}
