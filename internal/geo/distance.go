package geo

import (
	"errors"
	"fmt"
	"math"

	"trinetra/pkg/types"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// DefaultMaxDistanceMeters is the geofence radius used when none is configured.
const DefaultMaxDistanceMeters = 10000.0

var ErrTooFar = errors.New("respondent location is too far from the registered address")

// Distance returns the great circle distance between a and b in meters using
// the haversine formula.
func Distance(a, b types.Coordinate) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// DistanceError is returned by Policy.Check when the respondent is outside
// the allowed radius. It matches ErrTooFar.
type DistanceError struct {
	Meters float64
	Max    float64
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("Your live location is too far from the registered address (%dm away).", int64(math.Round(e.Meters)))
}

func (e *DistanceError) Is(target error) bool {
	return target == ErrTooFar
}

type Policy struct {
	MaxDistanceMeters float64
}

func NewPolicy(maxDistanceMeters float64) Policy {
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultMaxDistanceMeters
	}
	return Policy{MaxDistanceMeters: maxDistanceMeters}
}

// Check computes the distance between the geocoded candidate address and the
// respondent's fix. Both coordinates must be valid.
func (p Policy) Check(candidate, respondent types.Coordinate) (float64, error) {
	if !candidate.Valid() {
		return 0, fmt.Errorf("candidate coordinate out of range: %+v", candidate)
	}
	if !respondent.Valid() {
		return 0, types.Invalid("Valid GPS location from respondent is missing.")
	}

	max := p.MaxDistanceMeters
	if max <= 0 {
		max = DefaultMaxDistanceMeters
	}

	d := Distance(candidate, respondent)
	if d > max {
		return d, &DistanceError{Meters: d, Max: max}
	}

	return d, nil
}
