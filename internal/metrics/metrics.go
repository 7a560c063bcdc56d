// Package metrics exposes Prometheus instruments for the registration and
// attendance flows. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level instruments.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	Cancellations        prometheus.Counter
	CheckIns             *prometheus.CounterVec
	CertificatesIssued   prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	RenderDuration       prometheus.Histogram
	HTTPDuration         *prometheus.HistogramVec
}

// New registers all instruments on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduevent_registrations_total",
			Help: "Registrations created, by initial status",
		}, []string{"status"}),
		Cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "eduevent_registrations_cancelled_total",
			Help: "Registrations cancelled by their owner",
		}),
		CheckIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduevent_checkins_total",
			Help: "Check-in attempts, by result",
		}, []string{"result"}),
		CertificatesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "eduevent_certificates_issued_total",
			Help: "Certificates issued for the first time",
		}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduevent_notification_failures_total",
			Help: "Emails that could not be delivered, by email type",
		}, []string{"email_type"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduevent_certificate_render_duration_seconds",
			Help:    "Duration of certificate rendering",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduevent_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IncRegistration records a new registration with its initial status.
func (m *Metrics) IncRegistration(status string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(status).Inc()
}

// IncCancellation records a cancelled registration.
func (m *Metrics) IncCancellation() {
	if m == nil {
		return
	}
	m.Cancellations.Inc()
}

// IncCheckIn records a check-in attempt; result is "ok" or an error kind.
func (m *Metrics) IncCheckIn(result string) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(result).Inc()
}

// IncCertificateIssued records a first-time issuance.
func (m *Metrics) IncCertificateIssued() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

// IncNotificationFailure records an undelivered email.
func (m *Metrics) IncNotificationFailure(emailType string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(emailType).Inc()
}

// ObserveRender records render latency. Call with time.Now() taken before rendering.
func (m *Metrics) ObserveRender(start time.Time) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(time.Since(start).Seconds())
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
