// Package model holds the typed records the routing engine consumes from
// the persistence collaborator: road network, fleet and dispatch lifecycle
// entities. The package contains no I/O.
package model

import "time"

// NodeID identifies a vertex of the road graph.
type NodeID int64

// EdgeID identifies a directed edge of the road graph.
type EdgeID int64

// CityID identifies a city owning a set of nodes.
type CityID int64

// NodeKind categorizes a graph vertex.
type NodeKind string

const (
	NodeIntersection NodeKind = "intersection"
	NodeHospital     NodeKind = "hospital"
	NodeStation      NodeKind = "station"
)

// City is a named container for a road network.
type City struct {
	ID   CityID `json:"id"`
	Name string `json:"name"`
}

// Node is a vertex of the road graph. Immutable for the lifetime of a
// routing query.
type Node struct {
	ID   NodeID   `json:"id"`
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Name string   `json:"name"`
	Kind NodeKind `json:"kind"`
	City CityID   `json:"city_id"`
}

// Edge is a directed road segment. A two-way road is stored as two
// independent edges.
type Edge struct {
	ID   EdgeID `json:"id"`
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
	// Weight is the base travel time in minutes. Must be non-negative.
	Weight float64 `json:"weight"`
	// AdjustedWeight, when set, overrides Weight with a traffic-informed
	// travel time.
	AdjustedWeight *float64 `json:"adjusted_weight,omitempty"`
	// Distance is the physical length in meters, when known.
	Distance *float64 `json:"distance,omitempty"`
	Active   bool     `json:"active"`
}

// EffectiveWeight returns the travel time used for routing: the adjusted
// weight when present, the base weight otherwise. The second return is
// false when the edge is inactive and must be excluded entirely.
func (e Edge) EffectiveWeight() (float64, bool) {
	if !e.Active {
		return 0, false
	}
	if e.AdjustedWeight != nil {
		return *e.AdjustedWeight, true
	}
	return e.Weight, true
}

// AmbulanceStatus is the lifecycle state of a vehicle.
type AmbulanceStatus string

const (
	AmbulanceAvailable AmbulanceStatus = "available"
	AmbulanceAssigned  AmbulanceStatus = "assigned"
)

// Ambulance is an emergency vehicle stationed at a graph node.
type Ambulance struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status AmbulanceStatus `json:"status"`
	// CurrentNode is zero when the vehicle position is unknown; such
	// vehicles are skipped during selection.
	CurrentNode NodeID  `json:"current_node"`
	SpeedKmh    float64 `json:"speed_kmh"`
}

// Available reports whether the vehicle can be considered for selection.
func (a Ambulance) Available() bool {
	return a.Status == AmbulanceAvailable && a.CurrentNode != 0
}

// RequestStatus is the lifecycle state of an emergency request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in-progress"
	RequestCompleted  RequestStatus = "completed"
)

// EmergencyRequest is one dispatch lifecycle instance: a caller location
// resolved to a source node and a destination hospital node.
type EmergencyRequest struct {
	ID          string        `json:"id"`
	Source      NodeID        `json:"source_node"`
	Destination NodeID        `json:"destination_node"`
	Status      RequestStatus `json:"status"`
	CallerName  string        `json:"caller_name,omitempty"`
	CallerPhone string        `json:"caller_phone,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentInTransit AssignmentStatus = "in-transit"
	AssignmentCompleted AssignmentStatus = "completed"
)

// Terminal reports whether the assignment has reached its final state.
func (s AssignmentStatus) Terminal() bool { return s == AssignmentCompleted }

// Assignment links one ambulance to one emergency request. At most one
// non-terminal assignment may exist per request.
type Assignment struct {
	ID          string           `json:"id"`
	AmbulanceID string           `json:"ambulance_id"`
	RequestID   string           `json:"request_id"`
	// ETA is the estimated travel time in minutes at assignment time.
	ETA    float64          `json:"eta"`
	Status AssignmentStatus `json:"status"`
}

// Roadblock removes an edge from routing while active. Active means
// Start <= now and (End unset or End >= now).
type Roadblock struct {
	ID     int64      `json:"id"`
	EdgeID EdgeID     `json:"edge_id"`
	Start  time.Time  `json:"start_time"`
	End    *time.Time `json:"end_time,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// ActiveAt reports whether the roadblock covers the given instant.
func (r Roadblock) ActiveAt(now time.Time) bool {
	if now.Before(r.Start) {
		return false
	}
	return r.End == nil || !now.After(*r.End)
}

// TrafficUpdate carries a replacement travel time for one edge. Updates
// are only honored during peak hours; see the traffic package.
type TrafficUpdate struct {
	ID        int64     `json:"id"`
	EdgeID    EdgeID    `json:"edge_id"`
	NewWeight float64   `json:"new_weight"`
	Timestamp time.Time `json:"timestamp"`
}
