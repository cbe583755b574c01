// Package traffic mutates a freshly built graph view with the dynamic
// road state: roadblocks remove edges, congestion updates rewrite weights
// during peak hours. The view is owned by the calling request, so the
// mutation is done in place.
package traffic

import (
	"context"
	"time"

	"github.com/emsroute/ers/core/graph"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/store"
)

// DefaultPeakHours are the morning and evening rush windows during which
// congestion updates are honored.
var DefaultPeakHours = []int{7, 8, 9, 16, 17, 18}

// Overlay applies roadblocks and congestion updates to a View.
type Overlay struct {
	store store.TrafficStore
	peak  map[int]bool
}

// New creates an Overlay. A nil or empty peakHours falls back to
// DefaultPeakHours.
func New(st store.TrafficStore, peakHours []int) *Overlay {
	if len(peakHours) == 0 {
		peakHours = DefaultPeakHours
	}
	peak := make(map[int]bool, len(peakHours))
	for _, h := range peakHours {
		peak[h] = true
	}
	return &Overlay{store: st, peak: peak}
}

// Peak reports whether congestion updates apply at the given instant.
// The hour is read from the wall clock at overlay time, not at query
// issuance.
func (o *Overlay) Peak(now time.Time) bool { return o.peak[now.Hour()] }

// Apply mutates the view in place. Roadblocks run strictly before
// congestion so a weight rewrite can never resurrect a closed edge.
// A roadblock hides only the direction it references; a separately
// recorded reverse edge stays routable.
func (o *Overlay) Apply(ctx context.Context, view *graph.View, now time.Time) error {
	blocked, err := o.blockedPairs(ctx, view, now)
	if err != nil {
		return err
	}
	for from, arcs := range view.Adjacency {
		kept := arcs[:0]
		for _, arc := range arcs {
			if blocked[pair{from, arc.To}] {
				continue
			}
			kept = append(kept, arc)
		}
		view.Adjacency[from] = kept
	}

	if !o.Peak(now) {
		// Outside peak hours congestion is ignored, not deleted.
		return nil
	}
	rewrites, err := o.congestionPairs(ctx, view)
	if err != nil {
		return err
	}
	for from, arcs := range view.Adjacency {
		for i, arc := range arcs {
			if w, ok := rewrites[pair{from, arc.To}]; ok {
				arcs[i].Weight = w
			}
		}
	}
	return nil
}

// Annotations reports, per edge of the view, whether it is currently
// blocked or carries an active congestion update. Produced as an
// auxiliary structure for visualization; the domain records stay
// untouched.
func (o *Overlay) Annotations(ctx context.Context, view *graph.View, now time.Time) ([]graph.EdgeAnnotation, error) {
	blockedIDs := make(map[model.EdgeID]bool)
	roadblocks, err := o.store.Roadblocks(ctx)
	if err != nil {
		return nil, err
	}
	for _, rb := range roadblocks {
		if rb.ActiveAt(now) {
			blockedIDs[rb.EdgeID] = true
		}
	}

	trafficIDs := make(map[model.EdgeID]bool)
	if o.Peak(now) {
		updates, err := o.store.TrafficUpdates(ctx)
		if err != nil {
			return nil, err
		}
		for _, tu := range updates {
			trafficIDs[tu.EdgeID] = true
		}
	}

	anns := make([]graph.EdgeAnnotation, 0, len(view.Edges))
	for id := range view.Edges {
		anns = append(anns, graph.EdgeAnnotation{
			EdgeID:     id,
			Blocked:    blockedIDs[id],
			HasTraffic: trafficIDs[id],
		})
	}
	return anns, nil
}

type pair struct {
	from, to model.NodeID
}

// blockedPairs resolves active roadblocks to (from, to) pairs, restricted
// to edges present in this view.
func (o *Overlay) blockedPairs(ctx context.Context, view *graph.View, now time.Time) (map[pair]bool, error) {
	roadblocks, err := o.store.Roadblocks(ctx)
	if err != nil {
		return nil, err
	}
	blocked := make(map[pair]bool)
	for _, rb := range roadblocks {
		if !rb.ActiveAt(now) {
			continue
		}
		e, ok := view.Edges[rb.EdgeID]
		if !ok {
			continue
		}
		blocked[pair{e.From, e.To}] = true
	}
	return blocked, nil
}

// congestionPairs builds the (from, to) -> new weight lookup for edges of
// this view.
func (o *Overlay) congestionPairs(ctx context.Context, view *graph.View) (map[pair]float64, error) {
	updates, err := o.store.TrafficUpdates(ctx)
	if err != nil {
		return nil, err
	}
	rewrites := make(map[pair]float64)
	for _, tu := range updates {
		e, ok := view.Edges[tu.EdgeID]
		if !ok {
			continue
		}
		rewrites[pair{e.From, e.To}] = tu.NewWeight
	}
	return rewrites, nil
}
