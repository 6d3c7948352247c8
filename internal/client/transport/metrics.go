package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds client-side request instrumentation.
type Metrics struct {
	InFlight prometheus.Gauge
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kongtze",
			Subsystem: "client",
			Name:      "in_flight_requests",
			Help:      "Requests to the backend currently in flight.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kongtze",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Requests to the backend by status code and method.",
		}, []string{"code", "method"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kongtze",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.InFlight, m.Requests, m.Duration)
	return m
}

func (m *Metrics) instrument(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(m.InFlight,
		promhttp.InstrumentRoundTripperCounter(m.Requests,
			promhttp.InstrumentRoundTripperDuration(m.Duration, next),
		),
	)
}
