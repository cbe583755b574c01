// Package metrics defines the sink interfaces the engine reports into.
// Implementations (Prometheus, InfluxDB, fan-out) live in infra/metrics.
package metrics

import (
	"time"

	"github.com/emsroute/ers/core/model"
)

// Dispatch outcomes recorded per auto-dispatch attempt.
const (
	OutcomeAssigned      = "assigned"
	OutcomeNoHospital    = "no_hospital"
	OutcomeUnreachable   = "no_hospital_reachable"
	OutcomeNoAmbulance   = "no_ambulance"
	OutcomeDuplicate     = "duplicate_assignment"
	OutcomeInternalError = "error"
)

// DispatchRecord summarizes one auto-dispatch attempt.
type DispatchRecord struct {
	RequestID   string
	City        model.CityID
	AmbulanceID string
	Outcome     string
	ETAMinutes  float64
	Duration    time.Duration
	Timestamp   time.Time
}

// Sink receives dispatch records. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordDispatch(rec DispatchRecord) error
}

// SimulationRecorder is an optional capability of a Sink for tracking the
// number of movement simulations in flight.
type SimulationRecorder interface {
	SimulationStarted()
	SimulationFinished()
}

// Config selects and parameterizes the metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
