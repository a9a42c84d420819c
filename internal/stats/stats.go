// Package stats counts notable service events.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names shared between the recorder and its readers.
const (
	MetricEmbeds      = "embeds"
	MetricLinksCached = "linksCached"
	MetricDownloads   = "downloads"
	MetricAPIHits     = "api"
)

// Recorder counts named events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Increment(metric string)
}

// PrometheusRecorder backs the counters with a prometheus CounterVec so
// they show up on the metrics endpoint.
type PrometheusRecorder struct {
	counters *prometheus.CounterVec
}

// NewPrometheusRecorder registers the event counter with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twitfix",
		Name:      "events_total",
		Help:      "Count of service events by kind.",
	}, []string{"event"})
	reg.MustRegister(counters)
	return &PrometheusRecorder{counters: counters}
}

func (r *PrometheusRecorder) Increment(metric string) {
	r.counters.WithLabelValues(metric).Inc()
}

// NopRecorder discards every event. Used in tests and when metrics are
// not wanted.
type NopRecorder struct{}

func (NopRecorder) Increment(metric string) {}
