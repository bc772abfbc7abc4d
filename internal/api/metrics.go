package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the HTTP layer.
type Metrics struct {
	Requests       *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
}

var metrics = &Metrics{
	Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceclone",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"}),
	RequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voiceclone",
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180},
	}, []string{"route"}),
}

// RegisterMetrics registers the HTTP layer collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Requests)
	reg.MustRegister(metrics.RequestSeconds)
}

func observeRequest(method, route string, status int, elapsed time.Duration) {
	metrics.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	metrics.RequestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}
