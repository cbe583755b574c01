package mqtt

import (
	"sync"

	"github.com/emsroute/ers/core/sim"
)

// MockPublisher records published events for tests.
type MockPublisher struct {
	mu     sync.Mutex
	events map[string][]sim.TrackingEvent
	// Err, when set, is returned by every publish.
	Err error
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{events: make(map[string][]sim.TrackingEvent)}
}

// PublishTracking stores the event under its request ID.
func (m *MockPublisher) PublishTracking(requestID string, ev sim.TrackingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events[requestID] = append(m.events[requestID], ev)
	return nil
}

// Events returns a copy of the events published for a request.
func (m *MockPublisher) Events(requestID string) []sim.TrackingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sim.TrackingEvent(nil), m.events[requestID]...)
}
