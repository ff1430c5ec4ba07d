package relay

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the relay's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	bundlesPublished prometheus.Counter
	bundlesFetched   *prometheus.CounterVec
	envelopesPushed  prometheus.Counter
	envelopesPulled  prometheus.Counter
	queued           prometheus.Gauge
}

// NewMetrics registers the relay collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// HTTP metrics
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),

		// Relay metrics
		bundlesPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_bundles_published_total",
			Help: "Total pre-key bundles published",
		}),
		bundlesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_bundles_fetched_total",
				Help: "Total pre-key bundles handed out",
			},
			[]string{"one_time_pre_key"}, // "yes" or "no"
		),
		envelopesPushed: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_envelopes_pushed_total",
			Help: "Total envelopes queued",
		}),
		envelopesPulled: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_envelopes_pulled_total",
			Help: "Total envelopes handed to recipients",
		}),
		queued: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_envelopes_queued",
			Help: "Envelopes currently queued across all recipients",
		}),
	}
}

func (m *Metrics) bundlePublished() {
	if m != nil {
		m.bundlesPublished.Inc()
	}
}

func (m *Metrics) bundleFetched(withOTK bool) {
	if m == nil {
		return
	}
	label := "no"
	if withOTK {
		label = "yes"
	}
	m.bundlesFetched.WithLabelValues(label).Inc()
}

func (m *Metrics) envelopePushed() {
	if m != nil {
		m.envelopesPushed.Inc()
	}
}

func (m *Metrics) envelopesWerePulled(n int) {
	if m != nil {
		m.envelopesPulled.Add(float64(n))
	}
}

func (m *Metrics) queueChanged(delta int) {
	if m != nil && delta != 0 {
		m.queued.Add(float64(delta))
	}
}

// middleware records request counts and latency, labelled by chi route
// pattern to keep peer ids out of the label set.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
