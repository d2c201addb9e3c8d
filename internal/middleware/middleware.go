// Package middleware instruments outbound HTTP calls to the classifier
// endpoint.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics holds the collectors shared by every instrumented transport.
type ClientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewClientMetrics registers the classifier request collectors against reg.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ClientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_classifier_requests_total",
			Help: "Requests sent to the classifier endpoint, by status code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_classifier_request_duration_seconds",
			Help:    "Classifier request latency, by status code.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_classifier_requests_in_flight",
			Help: "Classifier requests awaiting a response.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register classifier metrics: %w", err)
		}
	}
	return m, nil
}

// RoundTripper wraps next, defaulting to http.DefaultTransport.
func (m *ClientMetrics) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.inFlight,
		promhttp.InstrumentRoundTripperCounter(m.requests,
			promhttp.InstrumentRoundTripperDuration(m.duration, next),
		),
	)
}
