package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/canwatch/internal/detect"
)

// Telemetry exposes the daemon's operational counters to Prometheus.
type Telemetry struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	alertsTotal     *prometheus.CounterVec
	analysesTotal   prometheus.Counter
	analysisFailed  prometheus.Counter
}

// NewTelemetry builds and registers the daemon metric set on a fresh
// registry.
func NewTelemetry() *Telemetry {
	t := &Telemetry{registry: prometheus.NewRegistry()}
	t.framesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "canwatch",
		Name:      "frames_processed_total",
		Help:      "Frame events run through the detection engine.",
	})
	t.alertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canwatch",
		Name:      "alerts_total",
		Help:      "Alerts raised by the detection engine, by kind.",
	}, []string{"kind"})
	t.analysesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "canwatch",
		Name:      "analyses_total",
		Help:      "Capture analyses completed.",
	})
	t.analysisFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "canwatch",
		Name:      "analyses_failed_total",
		Help:      "Capture analyses aborted by an error.",
	})
	t.registry.MustRegister(t.framesProcessed, t.alertsTotal, t.analysesTotal, t.analysisFailed)
	return t
}

// ObserveReport folds one completed analysis into the counters.
func (t *Telemetry) ObserveReport(rep detect.Report) {
	if t == nil {
		return
	}
	t.framesProcessed.Add(float64(rep.Summary.Frames))
	for kind, n := range rep.Counts {
		t.alertsTotal.WithLabelValues(string(kind)).Add(float64(n))
	}
	t.analysesTotal.Inc()
}

// ObserveFailure counts an aborted analysis.
func (t *Telemetry) ObserveFailure() {
	if t == nil {
		return
	}
	t.analysisFailed.Inc()
}

// Handler serves the metric exposition endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
