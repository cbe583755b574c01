// Package dispatch contains the decision procedures of the engine:
// hospital selection, ambulance selection, and the end-to-end flows that
// tie the spatial locator, graph builder, traffic overlay and path engine
// together. Every flow builds its own private graph view; nothing here is
// shared across requests.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emsroute/ers/core/graph"
	"github.com/emsroute/ers/core/logger"
	"github.com/emsroute/ers/core/metrics"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/store"
	"github.com/emsroute/ers/core/traffic"
)

// Dispatcher runs the dispatch flows against the persistence collaborator.
type Dispatcher struct {
	store   store.Store
	overlay *traffic.Overlay
	log     logger.Logger
	sink    metrics.Sink
	now     func() time.Time
	newID   func() string
}

// NewDispatcher creates a Dispatcher. The metrics sink may be nil.
func NewDispatcher(st store.Store, ov *traffic.Overlay, log logger.Logger, sink metrics.Sink) (*Dispatcher, error) {
	if st == nil || ov == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewDispatcher")
	}
	return &Dispatcher{
		store:   st,
		overlay: ov,
		log:     log,
		sink:    sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// SetClock overrides the wall clock, for tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// DispatchInput is a caller event: a location inside a city plus optional
// caller metadata.
type DispatchInput struct {
	City        model.CityID
	Lat         float64
	Lon         float64
	CallerName  string
	CallerPhone string
}

// RoutePoint is one vertex of the planned route with its coordinates.
type RoutePoint struct {
	Node model.NodeID `json:"node_id"`
	Lat  float64      `json:"lat"`
	Lon  float64      `json:"lon"`
}

// DispatchResult is the outcome of a successful auto-dispatch.
type DispatchResult struct {
	Request    model.EmergencyRequest
	Assignment model.Assignment
	Ambulance  model.Ambulance
	ETAMinutes float64
	DistanceKm float64
	Route      []RoutePoint
	Candidates []Candidate
}

// AutoDispatch resolves the caller location to the nearest node, picks the
// nearest reachable hospital, persists the emergency request, selects the
// minimum-ETA ambulance and creates the assignment. The no-candidate
// outcomes surface as the package's sentinel errors so callers can report
// a clear reason instead of a generic failure.
func (d *Dispatcher) AutoDispatch(ctx context.Context, in DispatchInput) (DispatchResult, error) {
	started := d.now()
	res, err := d.autoDispatch(ctx, in)
	d.record(metrics.DispatchRecord{
		RequestID:   res.Request.ID,
		City:        in.City,
		AmbulanceID: res.Ambulance.ID,
		Outcome:     outcomeOf(err),
		ETAMinutes:  res.ETAMinutes,
		Duration:    d.now().Sub(started),
		Timestamp:   started,
	})
	return res, err
}

func (d *Dispatcher) autoDispatch(ctx context.Context, in DispatchInput) (DispatchResult, error) {
	nodes, err := d.store.NodesByCity(ctx, in.City)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("load nodes: %w", err)
	}
	source, ok := graph.NearestNode(nodes, in.Lat, in.Lon)
	if !ok {
		return DispatchResult{}, ErrNoCityNodes
	}

	view, err := d.cityView(ctx, in.City)
	if err != nil {
		return DispatchResult{}, err
	}

	sel, err := SelectHospital(view, source.ID, nodes)
	if err != nil {
		return DispatchResult{}, err
	}

	req, err := d.store.CreateRequest(ctx, model.EmergencyRequest{
		ID:          d.newID(),
		Source:      source.ID,
		Destination: sel.Hospital,
		Status:      model.RequestPending,
		CallerName:  in.CallerName,
		CallerPhone: in.CallerPhone,
		CreatedAt:   d.now(),
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("create request: %w", err)
	}
	result := DispatchResult{Request: req, ETAMinutes: sel.ETAMinutes}

	ambulances, err := d.store.AvailableAmbulances(ctx, in.City)
	if err != nil {
		return result, fmt.Errorf("load ambulances: %w", err)
	}
	plan, err := SelectAmbulance(view, sel.Hospital, ambulances)
	result.Candidates = plan.Candidates
	if err != nil {
		return result, err
	}

	assignment, err := d.store.CreateAssignment(ctx, model.Assignment{
		ID:          d.newID(),
		AmbulanceID: plan.Best.ID,
		RequestID:   req.ID,
		ETA:         plan.ETAMinutes,
		Status:      model.AssignmentAssigned,
	})
	if errors.Is(err, store.ErrDuplicateAssignment) {
		// Declined, not failed: reuse the assignment that won the race.
		assignment, err = d.store.ActiveAssignmentByRequest(ctx, req.ID)
	}
	if err != nil {
		return result, fmt.Errorf("create assignment: %w", err)
	}
	if err := d.store.SetRequestStatus(ctx, req.ID, model.RequestInProgress); err != nil {
		return result, fmt.Errorf("update request: %w", err)
	}
	result.Request.Status = model.RequestInProgress

	byID := nodeIndex(nodes)
	result.Assignment = assignment
	result.Ambulance = plan.Best
	result.Route = routePoints(plan.Path, byID)
	result.DistanceKm = graph.PathDistanceKm(view, plan.Path, coordsFn(byID))
	d.log.Infof("dispatched ambulance %s to request %s, eta %.1f min", plan.Best.ID, req.ID, plan.ETAMinutes)
	return result, nil
}

// Completion reports the terminal commit of an assignment.
type Completion struct {
	RequestID   string    `json:"request_id"`
	AmbulanceID string    `json:"ambulance_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Complete finalizes the active assignment of an ambulance: request
// completed with timestamp, assignment completed, vehicle available, in
// one store commit. Returns store.ErrNotFound when the vehicle has no
// active assignment.
func (d *Dispatcher) Complete(ctx context.Context, ambulanceID string) (Completion, error) {
	assignment, err := d.store.ActiveAssignmentByAmbulance(ctx, ambulanceID)
	if err != nil {
		return Completion{}, err
	}
	now := d.now()
	if err := d.store.FinalizeRequest(ctx, assignment.RequestID, ambulanceID, now); err != nil {
		return Completion{}, fmt.Errorf("finalize request %s: %w", assignment.RequestID, err)
	}
	d.log.Infof("assignment %s completed by ambulance %s", assignment.ID, ambulanceID)
	return Completion{RequestID: assignment.RequestID, AmbulanceID: ambulanceID, CompletedAt: now}, nil
}

// TransitPlan is the input the movement simulator needs: the assigned
// vehicle, the ordered route and the total travel time estimate.
type TransitPlan struct {
	RequestID  string
	Assignment model.Assignment
	Ambulance  model.Ambulance
	Route      []model.Node
	ETAMinutes float64
}

// PlanTransit recomputes the route from the assigned ambulance's current
// node to the request destination on a fresh overlaid view. Used when a
// tracking subscriber attaches and the simulation must start.
func (d *Dispatcher) PlanTransit(ctx context.Context, requestID string) (TransitPlan, error) {
	req, err := d.store.Request(ctx, requestID)
	if err != nil {
		return TransitPlan{}, err
	}
	if req.Status == model.RequestCompleted {
		return TransitPlan{}, fmt.Errorf("request %s already completed: %w", requestID, store.ErrNotFound)
	}
	assignment, err := d.store.ActiveAssignmentByRequest(ctx, requestID)
	if err != nil {
		return TransitPlan{}, err
	}
	amb, err := d.store.Ambulance(ctx, assignment.AmbulanceID)
	if err != nil {
		return TransitPlan{}, err
	}
	dest, err := d.store.Node(ctx, req.Destination)
	if err != nil {
		return TransitPlan{}, err
	}

	view, err := d.cityView(ctx, dest.City)
	if err != nil {
		return TransitPlan{}, err
	}
	res, err := graph.ShortestPath(view, amb.CurrentNode, dest.ID)
	if err != nil {
		return TransitPlan{}, err
	}
	if !res.Reachable {
		return TransitPlan{}, ErrNoAmbulance
	}

	route := make([]model.Node, 0, len(res.Path))
	nodes, err := d.store.NodesByCity(ctx, dest.City)
	if err != nil {
		return TransitPlan{}, err
	}
	byID := nodeIndex(nodes)
	for _, id := range res.Path {
		if n, ok := byID[id]; ok {
			route = append(route, n)
		}
	}
	return TransitPlan{
		RequestID:  requestID,
		Assignment: assignment,
		Ambulance:  amb,
		Route:      route,
		ETAMinutes: res.Distance,
	}, nil
}

// DebugReport carries the full Dijkstra trace for one request.
type DebugReport struct {
	Request     model.EmergencyRequest `json:"request"`
	Nodes       []model.Node           `json:"nodes"`
	Edges       []model.Edge           `json:"edges"`
	Annotations []graph.EdgeAnnotation `json:"annotations"`
	Steps       []graph.Step           `json:"steps"`
	Path        []model.NodeID         `json:"path"`
	ETAMinutes  float64                `json:"eta_minutes"`
	DistanceKm  float64                `json:"distance_km"`
}

// DebugRoute reruns the request's routing computation with per-pop state
// snapshots for visualization. Strictly read-only: no persisted state is
// touched.
func (d *Dispatcher) DebugRoute(ctx context.Context, requestID string) (DebugReport, error) {
	req, err := d.store.Request(ctx, requestID)
	if err != nil {
		return DebugReport{}, err
	}
	src, err := d.store.Node(ctx, req.Source)
	if err != nil {
		return DebugReport{}, err
	}

	view, err := d.cityView(ctx, src.City)
	if err != nil {
		return DebugReport{}, err
	}
	anns, err := d.overlay.Annotations(ctx, view, d.now())
	if err != nil {
		d.log.Warnf("edge annotations unavailable: %v", err)
	}

	steps, res, err := graph.DebugShortestPath(view, req.Source, req.Destination)
	if err != nil {
		return DebugReport{}, err
	}
	nodes, err := d.store.NodesByCity(ctx, src.City)
	if err != nil {
		return DebugReport{}, err
	}
	edges := make([]model.Edge, 0, len(view.Edges))
	for _, e := range view.Edges {
		edges = append(edges, e)
	}
	byID := nodeIndex(nodes)
	return DebugReport{
		Request:     req,
		Nodes:       nodes,
		Edges:       edges,
		Annotations: anns,
		Steps:       steps,
		Path:        res.Path,
		ETAMinutes:  res.Distance,
		DistanceKm:  graph.PathDistanceKm(view, res.Path, coordsFn(byID)),
	}, nil
}

// cityView builds a fresh view and applies the traffic overlay. Overlay
// failures degrade to the un-overlaid graph with a warning; routing on a
// stale view beats failing the whole request.
func (d *Dispatcher) cityView(ctx context.Context, city model.CityID) (*graph.View, error) {
	view, err := graph.BuildCityGraph(ctx, d.store, city)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	if err := d.overlay.Apply(ctx, view, d.now()); err != nil {
		d.log.Warnf("traffic overlay skipped for city %d: %v", city, err)
	}
	return view, nil
}

func (d *Dispatcher) record(rec metrics.DispatchRecord) {
	if d.sink == nil {
		return
	}
	if err := d.sink.RecordDispatch(rec); err != nil {
		d.log.Errorf("metrics error: %v", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAssigned
	case errors.Is(err, ErrNoHospitals):
		return metrics.OutcomeNoHospital
	case errors.Is(err, ErrNoHospitalReachable), errors.Is(err, ErrNoCityNodes):
		return metrics.OutcomeUnreachable
	case errors.Is(err, ErrNoAmbulance):
		return metrics.OutcomeNoAmbulance
	case errors.Is(err, store.ErrDuplicateAssignment):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeInternalError
	}
}

func nodeIndex(nodes []model.Node) map[model.NodeID]model.Node {
	byID := make(map[model.NodeID]model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

func routePoints(path []model.NodeID, byID map[model.NodeID]model.Node) []RoutePoint {
	pts := make([]RoutePoint, 0, len(path))
	for _, id := range path {
		if n, ok := byID[id]; ok {
			pts = append(pts, RoutePoint{Node: id, Lat: n.Lat, Lon: n.Lon})
		}
	}
	return pts
}

func coordsFn(byID map[model.NodeID]model.Node) func(model.NodeID) (float64, float64, bool) {
	return func(id model.NodeID) (float64, float64, bool) {
		n, ok := byID[id]
		if !ok {
			return 0, 0, false
		}
		return n.Lat, n.Lon, true
	}
}
