package sim_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsroute/ers/core/dispatch"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/sim"
	"github.com/emsroute/ers/infra/logger"
	"github.com/emsroute/ers/infra/mqtt"
	memstore "github.com/emsroute/ers/infra/store"
	"github.com/emsroute/ers/internal/eventbus"
)

type fakePlanner struct {
	plan dispatch.TransitPlan
	err  error
}

func (p fakePlanner) PlanTransit(context.Context, string) (dispatch.TransitPlan, error) {
	return p.plan, p.err
}

// simFixture prepares a store holding one in-progress request with its
// assignment and a plan covering a two-node route.
func simFixture(t *testing.T, etaMinutes float64) (*memstore.Memory, dispatch.TransitPlan) {
	t.Helper()
	st := memstore.NewMemory()
	st.PutNode(model.Node{ID: 1, Lat: 1, Lon: 1, City: 1})
	st.PutNode(model.Node{ID: 2, Lat: 2, Lon: 2, City: 1, Kind: model.NodeHospital})
	st.PutAmbulance(model.Ambulance{ID: "amb-1", Status: model.AmbulanceAvailable, CurrentNode: 1})

	ctx := context.Background()
	_, err := st.CreateRequest(ctx, model.EmergencyRequest{ID: "req-1", Source: 1, Destination: 2, Status: model.RequestInProgress})
	require.NoError(t, err)
	assignment, err := st.CreateAssignment(ctx, model.Assignment{ID: "as-1", RequestID: "req-1", AmbulanceID: "amb-1", ETA: etaMinutes, Status: model.AssignmentAssigned})
	require.NoError(t, err)

	plan := dispatch.TransitPlan{
		RequestID:  "req-1",
		Assignment: assignment,
		Ambulance:  model.Ambulance{ID: "amb-1", Status: model.AmbulanceAssigned, CurrentNode: 1},
		Route: []model.Node{
			{ID: 1, Lat: 1, Lon: 1},
			{ID: 2, Lat: 2, Lon: 2},
		},
		ETAMinutes: etaMinutes,
	}
	return st, plan
}

func newSimulator(t *testing.T, st *memstore.Memory, planner sim.Planner, pub sim.Publisher) *sim.Simulator {
	t.Helper()
	bus := eventbus.New[sim.TrackingEvent]()
	s, err := sim.New(st, planner, bus, pub, logger.NopLogger{}, nil, time.Millisecond)
	require.NoError(t, err)
	return s
}

func collectUntilCompleted(t *testing.T, ch <-chan sim.TrackingEvent) []sim.TrackingEvent {
	t.Helper()
	var events []sim.TrackingEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
			if ev.Status == sim.StatusCompleted {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out after %d events", len(events))
		}
	}
}

func TestSimulationEventSequence(t *testing.T) {
	// Four seconds of ETA over two nodes: two ticks per node.
	st, plan := simFixture(t, 4.0/60.0)
	pub := mqtt.NewMockPublisher()
	s := newSimulator(t, st, fakePlanner{plan: plan}, pub)

	ch := s.Subscribe("req-1")
	defer s.Unsubscribe("req-1", ch)
	started, err := s.Ensure(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, started)

	events := collectUntilCompleted(t, ch)
	require.Len(t, events, 5)

	for i, want := range []float64{0.25, 0.5, 0.75, 1.0} {
		assert.InDelta(t, want, events[i].Progress, 1e-9)
		assert.Equal(t, 4-(i+1), events[i].RemainingSeconds)
	}
	assert.Equal(t, sim.StatusInTransit, events[0].Status)
	assert.Equal(t, sim.StatusInTransit, events[1].Status)
	assert.Equal(t, 0, events[0].NodeIndex)
	assert.Equal(t, 1, events[2].NodeIndex)
	assert.Equal(t, sim.StatusArrived, events[3].Status)

	final := events[4]
	assert.Equal(t, sim.StatusCompleted, final.Status)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
	assert.Zero(t, final.RemainingSeconds)
	require.NotNil(t, final.CompletedAt)
	assert.InDelta(t, 2.0, final.Location.Lat, 1e-9)

	// The external transport saw the same stream.
	require.Eventually(t, func() bool { return len(pub.Events("req-1")) == 5 }, time.Second, 5*time.Millisecond)
}

func TestSimulationCommitsTerminalState(t *testing.T) {
	st, plan := simFixture(t, 1.0/60.0)
	s := newSimulator(t, st, fakePlanner{plan: plan}, nil)

	ch := s.Subscribe("req-1")
	defer s.Unsubscribe("req-1", ch)
	_, err := s.Ensure(context.Background(), "req-1")
	require.NoError(t, err)
	collectUntilCompleted(t, ch)

	// The goroutine finalizes right before the completed event; poll
	// briefly for the store commit.
	require.Eventually(t, func() bool {
		req, err := st.Request(context.Background(), "req-1")
		return err == nil && req.Status == model.RequestCompleted
	}, 2*time.Second, 5*time.Millisecond)

	amb, err := st.Ambulance(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, model.AmbulanceAvailable, amb.Status)
	assert.Equal(t, model.NodeID(2), amb.CurrentNode)

	require.Eventually(t, func() bool { return !s.Running("req-1") }, 2*time.Second, 5*time.Millisecond)
}

func TestEnsureStartsOnlyOnce(t *testing.T) {
	st, plan := simFixture(t, 1) // one minute keeps the guard held
	s := newSimulator(t, st, fakePlanner{plan: plan}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	startedCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started, err := s.Ensure(context.Background(), "req-1")
			assert.NoError(t, err)
			if started {
				mu.Lock()
				startedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, startedCount)
	assert.True(t, s.Running("req-1"))
}

func TestEnsureReleasesGuardOnPlanningFailure(t *testing.T) {
	st, _ := simFixture(t, 1)
	s := newSimulator(t, st, fakePlanner{err: errors.New("no plan")}, nil)

	_, err := s.Ensure(context.Background(), "req-1")
	require.Error(t, err)
	assert.False(t, s.Running("req-1"))
}

func TestEnsureRejectsEmptyRoute(t *testing.T) {
	st, plan := simFixture(t, 1)
	plan.Route = nil
	s := newSimulator(t, st, fakePlanner{plan: plan}, nil)

	_, err := s.Ensure(context.Background(), "req-1")
	require.Error(t, err)
	assert.False(t, s.Running("req-1"))
}

func TestEnsureMarksAssignmentInTransit(t *testing.T) {
	st, plan := simFixture(t, 1)
	s := newSimulator(t, st, fakePlanner{plan: plan}, nil)

	_, err := s.Ensure(context.Background(), "req-1")
	require.NoError(t, err)

	a, err := st.ActiveAssignmentByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentInTransit, a.Status)
}

func TestPublisherFailureDoesNotStopSimulation(t *testing.T) {
	st, plan := simFixture(t, 1.0/60.0)
	pub := mqtt.NewMockPublisher()
	pub.Err = errors.New("broker down")
	s := newSimulator(t, st, fakePlanner{plan: plan}, pub)

	ch := s.Subscribe("req-1")
	defer s.Unsubscribe("req-1", ch)
	_, err := s.Ensure(context.Background(), "req-1")
	require.NoError(t, err)

	events := collectUntilCompleted(t, ch)
	assert.Equal(t, sim.StatusCompleted, events[len(events)-1].Status)
}
