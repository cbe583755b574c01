package dispatch

import (
	"github.com/emsroute/ers/core/graph"
	"github.com/emsroute/ers/core/model"
)

// Candidate is one considered ambulance with its estimated travel time to
// the destination.
type Candidate struct {
	Ambulance  model.Ambulance `json:"ambulance"`
	ETAMinutes float64         `json:"eta_minutes"`
}

// AmbulancePlan is the outcome of vehicle selection: the winner, its
// route, and the complete candidate list for diagnostics.
type AmbulancePlan struct {
	Best       model.Ambulance
	ETAMinutes float64
	Path       []model.NodeID
	Candidates []Candidate
}

// SelectAmbulance computes, for every available ambulance, the shortest
// path from its current node to the destination and picks the minimum-ETA
// candidate. Vehicles with no known position or no path are skipped. Ties
// go to the first candidate encountered.
func SelectAmbulance(view *graph.View, dest model.NodeID, ambulances []model.Ambulance) (AmbulancePlan, error) {
	var (
		plan  AmbulancePlan
		found bool
	)
	for _, amb := range ambulances {
		if !amb.Available() {
			continue
		}
		res, err := graph.ShortestPath(view, amb.CurrentNode, dest)
		if err != nil {
			return AmbulancePlan{}, err
		}
		if !res.Reachable {
			continue
		}
		plan.Candidates = append(plan.Candidates, Candidate{Ambulance: amb, ETAMinutes: res.Distance})
		if !found || res.Distance < plan.ETAMinutes {
			found = true
			plan.Best = amb
			plan.ETAMinutes = res.Distance
			plan.Path = res.Path
		}
	}
	if !found {
		return plan, ErrNoAmbulance
	}
	return plan, nil
}
