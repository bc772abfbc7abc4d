package clone

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the clone pipeline.
type Metrics struct {
	CloneSeconds  prometheus.Histogram
	CloneFailures *prometheus.CounterVec
	WarmUps       *prometheus.CounterVec
}

var metrics = &Metrics{
	CloneSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voiceclone",
		Subsystem: "clone",
		Name:      "duration_seconds",
		Help:      "Wall time of successful clone pipelines.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}),
	CloneFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceclone",
		Subsystem: "clone",
		Name:      "failures_total",
		Help:      "Failed clone pipelines by failure kind.",
	}, []string{"kind"}),
	WarmUps: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceclone",
		Subsystem: "warmup",
		Name:      "runs_total",
		Help:      "Warm-up runs by outcome.",
	}, []string{"outcome"}),
}

// RegisterMetrics registers the clone pipeline collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.CloneSeconds)
	reg.MustRegister(metrics.CloneFailures)
	reg.MustRegister(metrics.WarmUps)
}
