package dispatch

import "errors"

// Normal no-candidate outcomes. Callers branch on these; they are result
// variants, not faults.
var (
	// ErrNoCityNodes means the city has no graph nodes to resolve the
	// caller location against.
	ErrNoCityNodes = errors.New("dispatch: city has no nodes")
	// ErrNoHospitals means the city has no hospital nodes configured.
	// Distinct from ErrNoHospitalReachable.
	ErrNoHospitals = errors.New("dispatch: no hospitals configured")
	// ErrNoHospitalReachable means hospitals exist but none can be reached
	// from the caller location on the current view.
	ErrNoHospitalReachable = errors.New("dispatch: no hospital reachable")
	// ErrNoAmbulance means no available ambulance could reach the
	// destination.
	ErrNoAmbulance = errors.New("dispatch: no ambulance available")
)
