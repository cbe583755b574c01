// Package store defines the persistence boundary of the routing engine.
// The core consumes schema-shaped records through these interfaces and
// relies on the implementation's transaction semantics for the few
// operations that must be atomic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/emsroute/ers/core/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateAssignment is returned by CreateAssignment when the request
// already has a non-terminal assignment. Callers treat it as a declined
// no-op, not a failure.
var ErrDuplicateAssignment = errors.New("store: active assignment already exists")

// GraphStore provides read access to the road network.
type GraphStore interface {
	Cities(ctx context.Context) ([]model.City, error)
	NodesByCity(ctx context.Context, city model.CityID) ([]model.Node, error)
	Node(ctx context.Context, id model.NodeID) (model.Node, error)
	// EdgesByCity returns edges whose both endpoints belong to the city.
	EdgesByCity(ctx context.Context, city model.CityID) ([]model.Edge, error)
}

// TrafficStore provides read access to the dynamic overlay records.
type TrafficStore interface {
	Roadblocks(ctx context.Context) ([]model.Roadblock, error)
	TrafficUpdates(ctx context.Context) ([]model.TrafficUpdate, error)
}

// FleetStore provides access to the ambulance fleet.
type FleetStore interface {
	Ambulance(ctx context.Context, id string) (model.Ambulance, error)
	// AvailableAmbulances returns vehicles flagged available whose current
	// node belongs to the city.
	AvailableAmbulances(ctx context.Context, city model.CityID) ([]model.Ambulance, error)
	UpdateAmbulancePosition(ctx context.Context, id string, node model.NodeID) error
}

// RequestStore manages emergency requests and their assignments.
type RequestStore interface {
	CreateRequest(ctx context.Context, req model.EmergencyRequest) (model.EmergencyRequest, error)
	Request(ctx context.Context, id string) (model.EmergencyRequest, error)
	SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error

	// CreateAssignment atomically checks for an existing non-terminal
	// assignment on the same request, creates the new assignment and marks
	// the ambulance assigned. Returns ErrDuplicateAssignment when declined.
	CreateAssignment(ctx context.Context, a model.Assignment) (model.Assignment, error)
	// ActiveAssignmentByRequest returns the non-terminal assignment for a
	// request, or ErrNotFound.
	ActiveAssignmentByRequest(ctx context.Context, requestID string) (model.Assignment, error)
	// ActiveAssignmentByAmbulance returns the non-terminal assignment for a
	// vehicle, or ErrNotFound.
	ActiveAssignmentByAmbulance(ctx context.Context, ambulanceID string) (model.Assignment, error)
	SetAssignmentStatus(ctx context.Context, id string, status model.AssignmentStatus) error

	// FinalizeRequest commits the terminal state in one unit: request
	// completed with the given timestamp, assignment completed, ambulance
	// available. Either the whole commit happens or none of it.
	FinalizeRequest(ctx context.Context, requestID, ambulanceID string, completedAt time.Time) error
}

// Store aggregates the persistence interfaces consumed by the engine.
type Store interface {
	GraphStore
	TrafficStore
	FleetStore
	RequestStore
}
