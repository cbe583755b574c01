package graph

import (
	"container/heap"

	"github.com/emsroute/ers/core/model"
)

// Step is a snapshot of the Dijkstra state taken right after a node is
// popped and before its arcs are relaxed, so the distance map matches the
// moment the node was finalized. The terminal snapshot has Current nil.
type Step struct {
	Current   *model.NodeID            `json:"current"`
	Distances map[model.NodeID]float64 `json:"distances"`
	Visited   []model.NodeID           `json:"visited"`
	Frontier  []model.NodeID           `json:"frontier"`
}

// EdgeAnnotation decorates an edge for visualization without mutating the
// domain record.
type EdgeAnnotation struct {
	EdgeID     model.EdgeID `json:"edge_id"`
	Blocked    bool         `json:"blocked"`
	HasTraffic bool         `json:"has_traffic"`
}

// DebugShortestPath runs Dijkstra from source to exhaustion, recording a
// Step per pop. No early termination: the full exploration is what the
// visualizer wants to show. The reconstructed path to target is returned
// alongside; an unreachable target yields an empty path, not an error.
func DebugShortestPath(view *View, source, target model.NodeID) ([]Step, PathResult, error) {
	if !view.HasNode(source) || !view.HasNode(target) {
		return nil, PathResult{}, nil
	}

	dist := map[model.NodeID]float64{source: 0}
	prev := make(map[model.NodeID]model.NodeID)
	visited := make(map[model.NodeID]bool)
	var order []model.NodeID
	var steps []Step

	pq := &nodeQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		order = append(order, u)

		var frontier []model.NodeID
		for _, arc := range view.Neighbors(u) {
			if !visited[arc.To] {
				frontier = append(frontier, arc.To)
			}
		}
		cur := u
		steps = append(steps, Step{
			Current:   &cur,
			Distances: copyDistances(dist),
			Visited:   append([]model.NodeID(nil), order...),
			Frontier:  frontier,
		})

		if err := relax(view, u, item.dist, dist, prev, pq); err != nil {
			return nil, PathResult{}, err
		}
	}

	steps = append(steps, Step{
		Distances: copyDistances(dist),
		Visited:   append([]model.NodeID(nil), order...),
	})

	res := PathResult{}
	if d, ok := dist[target]; ok {
		path, err := reconstruct(prev, source, target)
		if err != nil {
			return nil, PathResult{}, err
		}
		res = PathResult{Reachable: true, Distance: d, Path: path}
	}
	return steps, res, nil
}

func copyDistances(m map[model.NodeID]float64) map[model.NodeID]float64 {
	out := make(map[model.NodeID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
