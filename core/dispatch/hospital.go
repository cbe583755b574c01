package dispatch

import (
	"github.com/emsroute/ers/core/graph"
	"github.com/emsroute/ers/core/model"
)

// HospitalSelection is the outcome of picking the nearest reachable
// hospital from a source node.
type HospitalSelection struct {
	Hospital model.NodeID
	// ETAMinutes is the Dijkstra distance to the winning hospital.
	ETAMinutes float64
	// Distances is the full distance map of the underlying run, kept for
	// diagnostics.
	Distances map[model.NodeID]float64
}

// SelectHospital runs one full Dijkstra from source and picks the
// hospital-kind node with the minimum travel time. The two "none" cases
// stay distinguishable: ErrNoHospitals when the city has no hospitals at
// all, ErrNoHospitalReachable when none of them is reachable.
func SelectHospital(view *graph.View, source model.NodeID, nodes []model.Node) (HospitalSelection, error) {
	var hospitals []model.NodeID
	for _, n := range nodes {
		if n.Kind == model.NodeHospital {
			hospitals = append(hospitals, n.ID)
		}
	}
	if len(hospitals) == 0 {
		return HospitalSelection{}, ErrNoHospitals
	}

	res, err := graph.NearestOf(view, source, hospitals)
	if err != nil {
		return HospitalSelection{}, err
	}
	if !res.Found {
		return HospitalSelection{}, ErrNoHospitalReachable
	}
	return HospitalSelection{Hospital: res.Best, ETAMinutes: res.Distance, Distances: res.Distances}, nil
}
