package sim

import "time"

// Transit statuses carried by tracking events.
const (
	StatusInTransit = "in-transit"
	StatusArrived   = "arrived"
	StatusCompleted = "completed"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TrackingEvent is one positional update of a simulated ambulance,
// broadcast to every subscriber of the request and published to the
// external transport.
type TrackingEvent struct {
	RequestID string      `json:"request_id"`
	VehicleID string      `json:"vehicle_id"`
	Location  Coordinates `json:"current_location"`
	Status    string      `json:"status"`
	// Progress is the fraction of the journey completed, in [0, 1].
	Progress float64 `json:"progress"`
	// NodeIndex is the position within the route the vehicle currently
	// occupies.
	NodeIndex int `json:"node_index"`
	// RemainingSeconds is the live ETA countdown.
	RemainingSeconds int        `json:"eta_seconds"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Publisher delivers tracking events to the external transport. A failed
// delivery must never abort the simulation; implementations report the
// error and the loop logs it.
type Publisher interface {
	PublishTracking(requestID string, ev TrackingEvent) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishTracking(string, TrackingEvent) error { return nil }
