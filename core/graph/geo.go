package graph

import (
	"math"

	"github.com/emsroute/ers/core/model"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// coordinates given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// PathDistanceKm sums the physical length of each hop of a reconstructed
// path using the view's edge records. When no hop carries distance data
// the result falls back to the great-circle distance between the path's
// endpoints. Returns 0 for paths shorter than two nodes.
func PathDistanceKm(view *View, path []model.NodeID, endpoints func(model.NodeID) (lat, lon float64, ok bool)) float64 {
	if len(path) < 2 {
		return 0
	}
	var meters float64
	for i := 0; i < len(path)-1; i++ {
		for _, arc := range view.Neighbors(path[i]) {
			if arc.To != path[i+1] {
				continue
			}
			if e, ok := view.Edges[arc.EdgeID]; ok && e.Distance != nil {
				meters += *e.Distance
			}
			break
		}
	}
	if meters > 0 {
		return meters / 1000.0
	}
	if endpoints == nil {
		return 0
	}
	lat1, lon1, ok1 := endpoints(path[0])
	lat2, lon2, ok2 := endpoints(path[len(path)-1])
	if !ok1 || !ok2 {
		return 0
	}
	return Haversine(lat1, lon1, lat2, lon2)
}
