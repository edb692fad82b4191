// Package geo holds the coordinate type and great-circle distance used by the
// proximity search.
package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMiles is the mean Earth radius used for every distance in miles.
const EarthRadiusMiles = 3959.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite and in range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return false
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// LatLng converts p to an s2.LatLng.
func (p Point) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Latitude, p.Longitude)
}

// DistanceMiles returns the haversine great-circle distance between a and b.
//
// s2.LatLng.Distance evaluates the haversine formula on the unit sphere, so the
// result is the central angle scaled by EarthRadiusMiles. Out of range input is
// not rejected here; NaN coordinates yield NaN.
func DistanceMiles(a, b Point) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadiusMiles
}

// AngleForMiles returns the central angle subtended by an arc of the given
// length, capped at a half turn.
func AngleForMiles(miles float64) s1.Angle {
	rad := miles / EarthRadiusMiles
	if rad > math.Pi {
		rad = math.Pi
	}
	return s1.Angle(rad) * s1.Radian
}
