package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks form link activity, geofence decisions and upstream health.
type Metrics struct {
	LinksCreated       *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	DraftsSaved        prometheus.Counter
	GeofenceRejections prometheus.Counter
	UpstreamFailures   *prometheus.CounterVec
	LinksExpired       prometheus.Counter
	SubmitDuration     *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
}

// New registers every metric with reg. Tests pass a fresh prometheus.NewRegistry()
// so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LinksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trinetra_form_links_created_total",
			Help: "Total number of form links created",
		}, []string{"form_type"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trinetra_submissions_total",
			Help: "Total number of accepted form submissions",
		}, []string{"form_type"}),
		DraftsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "trinetra_bgv_drafts_saved_total",
			Help: "Total number of BGV draft saves",
		}),
		GeofenceRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "trinetra_geofence_rejections_total",
			Help: "AVF submissions rejected for being too far from the registered address",
		}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trinetra_upstream_failures_total",
			Help: "Failures of external dependencies",
		}, []string{"service"}),
		LinksExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "trinetra_form_links_expired_total",
			Help: "Form links moved to expired by the sweeper or on access",
		}),
		SubmitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trinetra_submit_duration_seconds",
			Help:    "Duration of submissions including geocoding and rendering",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"form_type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trinetra_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// ObserveSubmit records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(formType string, start time.Time) {
	m.SubmitDuration.WithLabelValues(formType).Observe(time.Since(start).Seconds())
}
