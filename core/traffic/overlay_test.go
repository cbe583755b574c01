package traffic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsroute/ers/core/graph"
	"github.com/emsroute/ers/core/model"
	memstore "github.com/emsroute/ers/infra/store"
)

var (
	peakTime    = time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC)
	offPeakTime = time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
)

func newStoreWithRoad(t *testing.T) *memstore.Memory {
	t.Helper()
	st := memstore.NewMemory()
	st.PutNode(model.Node{ID: 1, City: 1})
	st.PutNode(model.Node{ID: 2, City: 1})
	st.PutEdge(model.Edge{ID: 10, From: 1, To: 2, Weight: 5, Active: true})
	st.PutEdge(model.Edge{ID: 11, From: 2, To: 1, Weight: 5, Active: true})
	return st
}

func buildView(t *testing.T, st *memstore.Memory) *graph.View {
	t.Helper()
	v, err := graph.BuildCityGraph(context.Background(), st, 1)
	require.NoError(t, err)
	return v
}

func arcTo(v *graph.View, from, to model.NodeID) (graph.Arc, bool) {
	for _, arc := range v.Neighbors(from) {
		if arc.To == to {
			return arc, true
		}
	}
	return graph.Arc{}, false
}

func TestRoadblockRemovesOnlyItsDirection(t *testing.T) {
	st := newStoreWithRoad(t)
	end := peakTime.Add(time.Hour)
	st.PutRoadblock(model.Roadblock{ID: 1, EdgeID: 10, Start: peakTime.Add(-time.Hour), End: &end})

	v := buildView(t, st)
	ov := New(st, nil)
	require.NoError(t, ov.Apply(context.Background(), v, offPeakTime.Add(-4*time.Hour)))

	_, forward := arcTo(v, 1, 2)
	assert.False(t, forward)
	_, reverse := arcTo(v, 2, 1)
	assert.True(t, reverse)
}

func TestRoadblockWindowBoundaries(t *testing.T) {
	st := newStoreWithRoad(t)
	start := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	st.PutRoadblock(model.Roadblock{ID: 1, EdgeID: 10, Start: start, End: &end})
	ov := New(st, nil)

	cases := []struct {
		name    string
		now     time.Time
		blocked bool
	}{
		{"before start", start.Add(-time.Minute), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after end", end.Add(time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := buildView(t, st)
			require.NoError(t, ov.Apply(context.Background(), v, tc.now))
			_, present := arcTo(v, 1, 2)
			assert.Equal(t, !tc.blocked, present)
		})
	}
}

func TestRoadblockOpenEnded(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutRoadblock(model.Roadblock{ID: 1, EdgeID: 10, Start: peakTime.Add(-time.Hour)})

	v := buildView(t, st)
	ov := New(st, nil)
	require.NoError(t, ov.Apply(context.Background(), v, peakTime.Add(240*time.Hour)))
	_, present := arcTo(v, 1, 2)
	assert.False(t, present)
}

func TestCongestionAppliesOnlyDuringPeak(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutTrafficUpdate(model.TrafficUpdate{ID: 1, EdgeID: 10, NewWeight: 12, Timestamp: peakTime})
	ov := New(st, nil)

	peakView := buildView(t, st)
	require.NoError(t, ov.Apply(context.Background(), peakView, peakTime))
	arc, ok := arcTo(peakView, 1, 2)
	require.True(t, ok)
	assert.InDelta(t, 12, arc.Weight, 1e-9)

	offView := buildView(t, st)
	require.NoError(t, ov.Apply(context.Background(), offView, offPeakTime))
	arc, ok = arcTo(offView, 1, 2)
	require.True(t, ok)
	assert.InDelta(t, 5, arc.Weight, 1e-9)
}

func TestCustomPeakHours(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutTrafficUpdate(model.TrafficUpdate{ID: 1, EdgeID: 10, NewWeight: 12, Timestamp: offPeakTime})
	ov := New(st, []int{12})

	assert.True(t, ov.Peak(offPeakTime))
	assert.False(t, ov.Peak(peakTime))

	v := buildView(t, st)
	require.NoError(t, ov.Apply(context.Background(), v, offPeakTime))
	arc, ok := arcTo(v, 1, 2)
	require.True(t, ok)
	assert.InDelta(t, 12, arc.Weight, 1e-9)
}

func TestRoadblockBeatsCongestionOnSameEdge(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutRoadblock(model.Roadblock{ID: 1, EdgeID: 10, Start: peakTime.Add(-time.Hour)})
	st.PutTrafficUpdate(model.TrafficUpdate{ID: 1, EdgeID: 10, NewWeight: 2, Timestamp: peakTime})

	v := buildView(t, st)
	ov := New(st, nil)
	require.NoError(t, ov.Apply(context.Background(), v, peakTime))
	_, present := arcTo(v, 1, 2)
	assert.False(t, present)
}

func TestAnnotations(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutRoadblock(model.Roadblock{ID: 1, EdgeID: 10, Start: peakTime.Add(-time.Hour)})
	st.PutTrafficUpdate(model.TrafficUpdate{ID: 1, EdgeID: 11, NewWeight: 9, Timestamp: peakTime})

	v := buildView(t, st)
	ov := New(st, nil)
	anns, err := ov.Annotations(context.Background(), v, peakTime)
	require.NoError(t, err)
	require.Len(t, anns, 2)

	byEdge := make(map[model.EdgeID]graph.EdgeAnnotation)
	for _, a := range anns {
		byEdge[a.EdgeID] = a
	}
	assert.True(t, byEdge[10].Blocked)
	assert.False(t, byEdge[10].HasTraffic)
	assert.True(t, byEdge[11].HasTraffic)
	assert.False(t, byEdge[11].Blocked)
}

func TestAnnotationsHideTrafficOffPeak(t *testing.T) {
	st := newStoreWithRoad(t)
	st.PutTrafficUpdate(model.TrafficUpdate{ID: 1, EdgeID: 10, NewWeight: 9, Timestamp: offPeakTime})

	v := buildView(t, st)
	ov := New(st, nil)
	anns, err := ov.Annotations(context.Background(), v, offPeakTime)
	require.NoError(t, err)
	for _, a := range anns {
		assert.False(t, a.HasTraffic)
	}
}
