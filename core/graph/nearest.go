package graph

import "github.com/emsroute/ers/core/model"

// NearestNode returns the node closest to (lat, lon) by squared euclidean
// distance over coordinates. The square root is monotonic so it is skipped
// for the comparison; within a single city the flat-earth approximation is
// fine. Returns false when the slice is empty.
//
// Linear scan, O(n) per query. Graphs stay small enough that a spatial
// index would not pay for itself.
func NearestNode(nodes []model.Node, lat, lon float64) (model.Node, bool) {
	var (
		best     model.Node
		bestDist float64
		found    bool
	)
	for _, n := range nodes {
		dlat := n.Lat - lat
		dlon := n.Lon - lon
		d := dlat*dlat + dlon*dlon
		if !found || d < bestDist {
			found = true
			best = n
			bestDist = d
		}
	}
	return best, found
}
