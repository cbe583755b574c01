// Package sim drives the real-time movement simulation of assigned
// ambulances. One goroutine runs per dispatch request, guarded by an
// atomic check-and-set registry so concurrent subscribers can attach to
// the same request without double-starting it.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/emsroute/ers/core/dispatch"
	"github.com/emsroute/ers/core/logger"
	"github.com/emsroute/ers/core/metrics"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/store"
	"github.com/emsroute/ers/internal/eventbus"
)

// Planner resolves a request into a transit plan. Implemented by
// dispatch.Dispatcher.
type Planner interface {
	PlanTransit(ctx context.Context, requestID string) (dispatch.TransitPlan, error)
}

// Simulator owns the per-request simulation goroutines.
type Simulator struct {
	store   store.Store
	planner Planner
	bus     *eventbus.Bus[TrackingEvent]
	pub     Publisher
	log     logger.Logger
	sink    metrics.Sink
	tick    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// New creates a Simulator emitting one event per tick. A zero tick
// defaults to one second; a nil publisher defaults to NopPublisher.
func New(st store.Store, planner Planner, bus *eventbus.Bus[TrackingEvent], pub Publisher, log logger.Logger, sink metrics.Sink, tick time.Duration) (*Simulator, error) {
	if st == nil || planner == nil || bus == nil || log == nil {
		return nil, fmt.Errorf("sim: nil parameter provided to New")
	}
	if tick <= 0 {
		tick = time.Second
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Simulator{
		store:   st,
		planner: planner,
		bus:     bus,
		pub:     pub,
		log:     log,
		sink:    sink,
		tick:    tick,
		now:     time.Now,
		running: make(map[string]bool),
	}, nil
}

// Subscribe attaches a consumer to the request's event stream.
func (s *Simulator) Subscribe(requestID string) <-chan TrackingEvent {
	return s.bus.Subscribe(requestID)
}

// Unsubscribe detaches a consumer. The simulation keeps progressing
// server-side; only delivery to this subscriber stops.
func (s *Simulator) Unsubscribe(requestID string, ch <-chan TrackingEvent) {
	s.bus.Unsubscribe(requestID, ch)
}

// Running reports whether a simulation is in flight for the request.
func (s *Simulator) Running(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[requestID]
}

// Ensure starts the movement simulation for the request unless one is
// already running. Returns true when this call started it. Planning
// failures release the guard and surface the error; an already-running
// simulation returns (false, nil).
func (s *Simulator) Ensure(ctx context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	if s.running[requestID] {
		s.mu.Unlock()
		return false, nil
	}
	s.running[requestID] = true
	s.mu.Unlock()

	plan, err := s.planner.PlanTransit(ctx, requestID)
	if err != nil {
		s.release(requestID)
		return false, err
	}
	if len(plan.Route) == 0 {
		s.release(requestID)
		return false, fmt.Errorf("sim: empty route for request %s", requestID)
	}
	if err := s.store.SetAssignmentStatus(ctx, plan.Assignment.ID, model.AssignmentInTransit); err != nil {
		s.release(requestID)
		return false, fmt.Errorf("mark in-transit: %w", err)
	}

	if rec, ok := s.sink.(metrics.SimulationRecorder); ok {
		rec.SimulationStarted()
	}
	go s.run(plan)
	return true, nil
}

func (s *Simulator) release(requestID string) {
	s.mu.Lock()
	delete(s.running, requestID)
	s.mu.Unlock()
}

// run executes the simulation loop to natural completion. It deliberately
// uses a background context: a disconnecting subscriber or an expired
// request context must not stop the vehicle.
func (s *Simulator) run(plan dispatch.TransitPlan) {
	defer func() {
		s.release(plan.RequestID)
		if rec, ok := s.sink.(metrics.SimulationRecorder); ok {
			rec.SimulationFinished()
		}
	}()

	ctx := context.Background()
	steps := len(plan.Route)
	// One tick stands for one second of ETA. Clamp so every node gets at
	// least one tick; the last node absorbs the rounding remainder and the
	// dwell times sum exactly to the total.
	totalTicks := int(math.Round(plan.ETAMinutes * 60))
	if totalTicks < steps {
		totalTicks = steps
	}
	base := totalTicks / steps

	done := 0
	remaining := totalTicks
	for i, node := range plan.Route {
		if err := s.store.UpdateAmbulancePosition(ctx, plan.Ambulance.ID, node.ID); err != nil {
			s.log.Errorf("simulation %s: update position: %v", plan.RequestID, err)
			return
		}
		dwell := base
		if i == steps-1 {
			dwell = totalTicks - base*(steps-1)
		}
		for t := 0; t < dwell; t++ {
			done++
			remaining--
			arrived := i == steps-1 && t == dwell-1
			status := StatusInTransit
			if arrived {
				status = StatusArrived
			}
			s.emit(plan.RequestID, TrackingEvent{
				RequestID:        plan.RequestID,
				VehicleID:        plan.Ambulance.ID,
				Location:         Coordinates{Lat: node.Lat, Lng: node.Lon},
				Status:           status,
				Progress:         float64(done) / float64(totalTicks),
				NodeIndex:        i,
				RemainingSeconds: remaining,
			})
			if !arrived {
				time.Sleep(s.tick)
			}
		}
	}

	// Terminal commit: all of it or none of it.
	completedAt := s.now()
	if err := s.store.FinalizeRequest(ctx, plan.RequestID, plan.Ambulance.ID, completedAt); err != nil {
		s.log.Errorf("simulation %s: finalize: %v", plan.RequestID, err)
		return
	}
	last := plan.Route[steps-1]
	s.emit(plan.RequestID, TrackingEvent{
		RequestID:        plan.RequestID,
		VehicleID:        plan.Ambulance.ID,
		Location:         Coordinates{Lat: last.Lat, Lng: last.Lon},
		Status:           StatusCompleted,
		Progress:         1,
		NodeIndex:        steps - 1,
		RemainingSeconds: 0,
		CompletedAt:      &completedAt,
	})
	s.log.Infof("simulation %s: ambulance %s arrived", plan.RequestID, plan.Ambulance.ID)
}

// emit fans the event out in-process and to the external transport. A
// transport failure is logged and swallowed; other subscribers and the
// loop itself are unaffected.
func (s *Simulator) emit(requestID string, ev TrackingEvent) {
	s.bus.Publish(requestID, ev)
	if err := s.pub.PublishTracking(requestID, ev); err != nil {
		s.log.Warnf("tracking publish failed for %s: %v", requestID, err)
	}
}
