package metrics

import coremetrics "github.com/emsroute/ers/core/metrics"

// MultiSink fans dispatch records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// SimulationStarted forwards to every sink with the capability.
func (m *MultiSink) SimulationStarted() {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SimulationRecorder); ok {
			rec.SimulationStarted()
		}
	}
}

// SimulationFinished forwards to every sink with the capability.
func (m *MultiSink) SimulationFinished() {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SimulationRecorder); ok {
			rec.SimulationFinished()
		}
	}
}
