package graph

import "errors"

// ErrInconsistentPath is returned when a target has a finalized distance
// but the predecessor chain cannot be walked back to the source. This
// indicates a bug in the engine and must be surfaced, never reported as
// plain unreachability.
var ErrInconsistentPath = errors.New("graph: predecessor chain broken for reachable target")

// ErrNegativeWeight is returned when an arc with a negative effective
// weight is encountered during relaxation.
var ErrNegativeWeight = errors.New("graph: negative edge weight")
