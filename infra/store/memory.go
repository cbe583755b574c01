// Package store provides the in-memory implementation of the persistence
// boundary. A single mutex serializes every mutation, which gives the
// atomic check-and-set semantics the dispatch flows rely on.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/emsroute/ers/core/model"
	corestore "github.com/emsroute/ers/core/store"
)

// Memory is a mutex-guarded map-backed store.
type Memory struct {
	mu          sync.RWMutex
	cities      map[model.CityID]model.City
	nodes       map[model.NodeID]model.Node
	edges       map[model.EdgeID]model.Edge
	ambulances  map[string]model.Ambulance
	requests    map[string]model.EmergencyRequest
	assignments map[string]model.Assignment
	roadblocks  map[int64]model.Roadblock
	traffic     map[int64]model.TrafficUpdate
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		cities:      make(map[model.CityID]model.City),
		nodes:       make(map[model.NodeID]model.Node),
		edges:       make(map[model.EdgeID]model.Edge),
		ambulances:  make(map[string]model.Ambulance),
		requests:    make(map[string]model.EmergencyRequest),
		assignments: make(map[string]model.Assignment),
		roadblocks:  make(map[int64]model.Roadblock),
		traffic:     make(map[int64]model.TrafficUpdate),
	}
}

// --- write helpers used by seeding and tests ---

func (m *Memory) PutCity(c model.City) {
	m.mu.Lock()
	m.cities[c.ID] = c
	m.mu.Unlock()
}

func (m *Memory) PutNode(n model.Node) {
	m.mu.Lock()
	m.nodes[n.ID] = n
	m.mu.Unlock()
}

func (m *Memory) PutEdge(e model.Edge) {
	m.mu.Lock()
	m.edges[e.ID] = e
	m.mu.Unlock()
}

func (m *Memory) PutAmbulance(a model.Ambulance) {
	m.mu.Lock()
	m.ambulances[a.ID] = a
	m.mu.Unlock()
}

func (m *Memory) PutRoadblock(r model.Roadblock) {
	m.mu.Lock()
	m.roadblocks[r.ID] = r
	m.mu.Unlock()
}

func (m *Memory) PutTrafficUpdate(t model.TrafficUpdate) {
	m.mu.Lock()
	m.traffic[t.ID] = t
	m.mu.Unlock()
}

// DeleteRoadblock removes a roadblock record.
func (m *Memory) DeleteRoadblock(id int64) {
	m.mu.Lock()
	delete(m.roadblocks, id)
	m.mu.Unlock()
}

// --- GraphStore ---

func (m *Memory) Cities(context.Context) ([]model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.City, 0, len(m.cities))
	for _, c := range m.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) NodesByCity(_ context.Context, city model.CityID) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Node
	for _, n := range m.nodes {
		if n.City == city {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Node(_ context.Context, id model.NodeID) (model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return model.Node{}, fmt.Errorf("node %d: %w", id, corestore.ErrNotFound)
	}
	return n, nil
}

func (m *Memory) EdgesByCity(_ context.Context, city model.CityID) ([]model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Edge
	for _, e := range m.edges {
		from, okF := m.nodes[e.From]
		to, okT := m.nodes[e.To]
		if okF && okT && from.City == city && to.City == city {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- TrafficStore ---

func (m *Memory) Roadblocks(context.Context) ([]model.Roadblock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Roadblock, 0, len(m.roadblocks))
	for _, r := range m.roadblocks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TrafficUpdates(context.Context) ([]model.TrafficUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TrafficUpdate, 0, len(m.traffic))
	for _, t := range m.traffic {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- FleetStore ---

func (m *Memory) Ambulance(_ context.Context, id string) (model.Ambulance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.ambulances[id]
	if !ok {
		return model.Ambulance{}, fmt.Errorf("ambulance %s: %w", id, corestore.ErrNotFound)
	}
	return a, nil
}

func (m *Memory) AvailableAmbulances(_ context.Context, city model.CityID) ([]model.Ambulance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Ambulance
	for _, a := range m.ambulances {
		if a.Status != model.AmbulanceAvailable || a.CurrentNode == 0 {
			continue
		}
		if n, ok := m.nodes[a.CurrentNode]; ok && n.City == city {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAmbulancePosition(_ context.Context, id string, node model.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.ambulances[id]
	if !ok {
		return fmt.Errorf("ambulance %s: %w", id, corestore.ErrNotFound)
	}
	a.CurrentNode = node
	m.ambulances[id] = a
	return nil
}

// --- RequestStore ---

func (m *Memory) CreateRequest(_ context.Context, req model.EmergencyRequest) (model.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return model.EmergencyRequest{}, fmt.Errorf("request %s already exists", req.ID)
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *Memory) Request(_ context.Context, id string) (model.EmergencyRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return model.EmergencyRequest{}, fmt.Errorf("request %s: %w", id, corestore.ErrNotFound)
	}
	return req, nil
}

func (m *Memory) SetRequestStatus(_ context.Context, id string, status model.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, corestore.ErrNotFound)
	}
	req.Status = status
	m.requests[id] = req
	return nil
}

// CreateAssignment declines when the request already has a non-terminal
// assignment, otherwise creates the record and marks the ambulance
// assigned, all under one lock.
func (m *Memory) CreateAssignment(_ context.Context, a model.Assignment) (model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments {
		if existing.RequestID == a.RequestID && !existing.Status.Terminal() {
			return model.Assignment{}, corestore.ErrDuplicateAssignment
		}
	}
	amb, ok := m.ambulances[a.AmbulanceID]
	if !ok {
		return model.Assignment{}, fmt.Errorf("ambulance %s: %w", a.AmbulanceID, corestore.ErrNotFound)
	}
	amb.Status = model.AmbulanceAssigned
	m.ambulances[a.AmbulanceID] = amb
	m.assignments[a.ID] = a
	return a, nil
}

func (m *Memory) ActiveAssignmentByRequest(_ context.Context, requestID string) (model.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.RequestID == requestID && !a.Status.Terminal() {
			return a, nil
		}
	}
	return model.Assignment{}, fmt.Errorf("active assignment for request %s: %w", requestID, corestore.ErrNotFound)
}

func (m *Memory) ActiveAssignmentByAmbulance(_ context.Context, ambulanceID string) (model.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.AmbulanceID == ambulanceID && !a.Status.Terminal() {
			return a, nil
		}
	}
	return model.Assignment{}, fmt.Errorf("active assignment for ambulance %s: %w", ambulanceID, corestore.ErrNotFound)
}

func (m *Memory) SetAssignmentStatus(_ context.Context, id string, status model.AssignmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return fmt.Errorf("assignment %s: %w", id, corestore.ErrNotFound)
	}
	a.Status = status
	m.assignments[id] = a
	return nil
}

// FinalizeRequest validates every record first and only then mutates, so
// the terminal commit is all-or-nothing.
func (m *Memory) FinalizeRequest(_ context.Context, requestID, ambulanceID string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, corestore.ErrNotFound)
	}
	amb, ok := m.ambulances[ambulanceID]
	if !ok {
		return fmt.Errorf("ambulance %s: %w", ambulanceID, corestore.ErrNotFound)
	}
	var assignment *model.Assignment
	for id := range m.assignments {
		a := m.assignments[id]
		if a.RequestID == requestID && a.AmbulanceID == ambulanceID && !a.Status.Terminal() {
			assignment = &a
			break
		}
	}
	if assignment == nil {
		return fmt.Errorf("active assignment for request %s: %w", requestID, corestore.ErrNotFound)
	}

	req.Status = model.RequestCompleted
	req.CompletedAt = &completedAt
	m.requests[requestID] = req

	assignment.Status = model.AssignmentCompleted
	m.assignments[assignment.ID] = *assignment

	amb.Status = model.AmbulanceAvailable
	m.ambulances[ambulanceID] = amb
	return nil
}
