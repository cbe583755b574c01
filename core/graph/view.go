// Package graph materializes per-query road network views and runs the
// shortest-path computations on them. A View is owned exclusively by the
// request that built it; nothing in this package is safe for concurrent
// mutation and nothing needs to be.
package graph

import (
	"context"

	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/store"
)

// Arc is one adjacency entry: a directed hop to a neighbor with its
// effective travel time and the identity of the underlying edge.
type Arc struct {
	To     model.NodeID
	Weight float64
	EdgeID model.EdgeID
}

// View is a per-query snapshot of one city's road network. The adjacency
// map has an entry for every node of the city, so isolated nodes are
// representable. Edges keeps the full records for distance and metadata
// recovery along a reconstructed path.
type View struct {
	City      model.CityID
	Adjacency map[model.NodeID][]Arc
	Edges     map[model.EdgeID]model.Edge
}

// HasNode reports whether the node belongs to this view.
func (v *View) HasNode(id model.NodeID) bool {
	_, ok := v.Adjacency[id]
	return ok
}

// Neighbors returns the outgoing arcs of a node.
func (v *View) Neighbors(id model.NodeID) []Arc {
	return v.Adjacency[id]
}

// BuildCityGraph loads the city's nodes and edges and assembles a fresh
// View. Inactive edges are dropped entirely; every surviving arc carries
// the edge's effective weight. The store is read-only here.
func BuildCityGraph(ctx context.Context, st store.GraphStore, city model.CityID) (*View, error) {
	nodes, err := st.NodesByCity(ctx, city)
	if err != nil {
		return nil, err
	}

	view := &View{
		City:      city,
		Adjacency: make(map[model.NodeID][]Arc, len(nodes)),
		Edges:     make(map[model.EdgeID]model.Edge),
	}
	for _, n := range nodes {
		view.Adjacency[n.ID] = nil
	}
	if len(nodes) == 0 {
		return view, nil
	}

	edges, err := st.EdgesByCity(ctx, city)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		w, ok := e.EffectiveWeight()
		if !ok {
			continue
		}
		// EdgesByCity guarantees both endpoints are city nodes, but a
		// stale record must not smuggle a foreign vertex into the view.
		if !view.HasNode(e.From) || !view.HasNode(e.To) {
			continue
		}
		view.Adjacency[e.From] = append(view.Adjacency[e.From], Arc{To: e.To, Weight: w, EdgeID: e.ID})
		view.Edges[e.ID] = e
	}
	return view, nil
}
