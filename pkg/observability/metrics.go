package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the engine reports into. Runtime faults are
// never thrown out of the run loop; together with the structured log they
// are the observability channel faults surface on.
type Metrics struct {
	Firings      *prometheus.CounterVec
	Faults       *prometheus.CounterVec
	FireDuration *prometheus.HistogramVec
	QueueDepth   *prometheus.GaugeVec
}

// New creates the engine collectors and registers them with reg. Pass a
// fresh prometheus.NewRegistry per graph to keep tests independent.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_actor_firings_total",
			Help: "Completed firings per actor.",
		}, []string{"actor"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_actor_faults_total",
			Help: "Fire faults per actor.",
		}, []string{"actor"}),
		FireDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weft_actor_fire_duration_seconds",
			Help:    "Duration of Fire calls per actor.",
			Buckets: prometheus.DefBuckets,
		}, []string{"actor"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weft_connection_queue_depth",
			Help: "Tokens pending per connection.",
		}, []string{"connection"}),
	}
	if reg != nil {
		reg.MustRegister(m.Firings, m.Faults, m.FireDuration, m.QueueDepth)
	}
	return m
}
