// Package metrics provides the sink implementations: Prometheus, InfluxDB
// and a fan-out combining them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/emsroute/ers/core/metrics"
)

// PromSink records dispatch activity in Prometheus metrics.
type PromSink struct {
	dispatches *prometheus.CounterVec
	latency    prometheus.Histogram
	active     prometheus.Gauge
}

// NewPromSink registers the dispatch metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the metrics on the provided
// registerer. A nil registerer defaults to the global one. Re-registration
// reuses the existing collectors so repeated construction stays safe.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ers_dispatch_requests_total",
		Help: "Auto-dispatch attempts by outcome",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ers_dispatch_duration_seconds",
		Help:    "Wall time of the routing and assignment decision",
		Buckets: prometheus.DefBuckets,
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ers_active_simulations",
		Help: "Movement simulations currently in flight",
	})

	if err := reg.Register(dispatches); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			dispatches = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(active); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			active = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{dispatches: dispatches, latency: latency, active: active}, nil
}

// RecordDispatch counts the attempt and observes its duration.
func (s *PromSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	s.dispatches.WithLabelValues(rec.Outcome).Inc()
	s.latency.Observe(rec.Duration.Seconds())
	return nil
}

// SimulationStarted increments the in-flight simulation gauge.
func (s *PromSink) SimulationStarted() { s.active.Inc() }

// SimulationFinished decrements the in-flight simulation gauge.
func (s *PromSink) SimulationFinished() { s.active.Dec() }
