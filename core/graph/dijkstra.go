package graph

import (
	"container/heap"
	"fmt"

	"github.com/emsroute/ers/core/model"
)

// PathResult is the outcome of a single-target shortest-path query.
// Reachable is false when source or target is absent from the view or no
// path exists; distances and paths are only meaningful when it is true.
type PathResult struct {
	Reachable bool
	// Distance is the sum of effective weights along the best path,
	// in the same time unit as the edge weights (minutes).
	Distance float64
	// Path is the ordered node sequence from source to target inclusive.
	Path []model.NodeID
}

// NearestResult is the outcome of a one-to-many query.
type NearestResult struct {
	Found    bool
	Best     model.NodeID
	Distance float64
	// Distances maps every reachable node to its finalized distance.
	Distances map[model.NodeID]float64
}

// ShortestPath runs Dijkstra from source and stops as soon as target is
// finalized. The priority queue uses lazy deletion: stale entries for
// already-finalized nodes are skipped on pop. A broken predecessor chain
// for a finalized target returns ErrInconsistentPath.
func ShortestPath(view *View, source, target model.NodeID) (PathResult, error) {
	if !view.HasNode(source) || !view.HasNode(target) {
		return PathResult{}, nil
	}

	dist := map[model.NodeID]float64{source: 0}
	prev := make(map[model.NodeID]model.NodeID)
	visited := make(map[model.NodeID]bool)

	pq := &nodeQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == target {
			// Finalized: the popped distance is optimal.
			break
		}
		if err := relax(view, u, item.dist, dist, prev, pq); err != nil {
			return PathResult{}, err
		}
	}

	d, ok := dist[target]
	if !ok || !visited[target] {
		return PathResult{}, nil
	}

	path, err := reconstruct(prev, source, target)
	if err != nil {
		return PathResult{}, err
	}
	return PathResult{Reachable: true, Distance: d, Path: path}, nil
}

// NearestOf runs Dijkstra from source to exhaustion and picks the target
// with the minimum finalized distance. One full run is cheaper than an
// early-terminated run per candidate when many destinations are compared.
// Ties go to the first target in slice order.
func NearestOf(view *View, source model.NodeID, targets []model.NodeID) (NearestResult, error) {
	if !view.HasNode(source) {
		return NearestResult{}, nil
	}

	dist := map[model.NodeID]float64{source: 0}
	visited := make(map[model.NodeID]bool)

	pq := &nodeQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if err := relax(view, u, item.dist, dist, nil, pq); err != nil {
			return NearestResult{}, err
		}
	}

	res := NearestResult{Distances: dist}
	for _, t := range targets {
		d, ok := dist[t]
		if !ok {
			continue
		}
		if !res.Found || d < res.Distance {
			res.Found = true
			res.Best = t
			res.Distance = d
		}
	}
	return res, nil
}

// relax updates tentative distances for the neighbors of u. prev may be
// nil when predecessors are not needed.
func relax(view *View, u model.NodeID, du float64, dist map[model.NodeID]float64, prev map[model.NodeID]model.NodeID, pq *nodeQueue) error {
	for _, arc := range view.Neighbors(u) {
		if arc.Weight < 0 {
			return fmt.Errorf("%w: edge %d (%d->%d) weight=%v", ErrNegativeWeight, arc.EdgeID, u, arc.To, arc.Weight)
		}
		nd := du + arc.Weight
		if cur, ok := dist[arc.To]; ok && nd >= cur {
			continue
		}
		dist[arc.To] = nd
		if prev != nil {
			prev[arc.To] = u
		}
		heap.Push(pq, queueItem{node: arc.To, dist: nd})
	}
	return nil
}

// reconstruct walks the predecessor map from target back to source.
func reconstruct(prev map[model.NodeID]model.NodeID, source, target model.NodeID) ([]model.NodeID, error) {
	path := []model.NodeID{target}
	cur := target
	for cur != source {
		p, ok := prev[cur]
		if !ok {
			return nil, fmt.Errorf("%w: stuck at node %d", ErrInconsistentPath, cur)
		}
		cur = p
		path = append(path, cur)
	}
	// Reverse into source-to-target order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// queueItem is one entry of the min-priority queue. Multiple entries per
// node may coexist; only the first pop of a node finalizes it.
type queueItem struct {
	node model.NodeID
	dist float64
}

type nodeQueue []queueItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
