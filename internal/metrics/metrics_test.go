package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRegistration("confirmed")
	m.IncRegistration("confirmed")
	m.IncRegistration("pending")
	m.IncCheckIn("ok")
	m.IncCheckIn("invalid_token")
	m.IncCertificateIssued()
	m.IncNotificationFailure("attendance_token")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns.WithLabelValues("invalid_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CertificatesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("attendance_token")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRegistration("confirmed")
		m.IncCancellation()
		m.IncCheckIn("ok")
		m.IncCertificateIssued()
		m.IncNotificationFailure("x")
		m.ObserveRender(time.Now())
		m.ObserveHTTP("GET", "/health", "200", time.Millisecond)
	})
}
