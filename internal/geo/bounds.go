package geo

import "math"

// Box is a latitude/longitude rectangle in degrees. When the box crosses the
// antimeridian MinLon is greater than MaxLon.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// CrossesAntimeridian reports whether the box wraps past ±180.
func (b Box) CrossesAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

// boxPadDegrees widens every bounding box a little so that points sitting
// exactly on the boundary are never lost to rounding.
const boxPadDegrees = 1e-9

// BoundingBox returns the smallest latitude/longitude box containing every
// point within radiusMiles of center. Near the poles, or for radii wider than
// the longitude span allows, the box covers all longitudes.
func BoundingBox(center Point, radiusMiles float64) Box {
	angle := AngleForMiles(math.Max(radiusMiles, 0)).Radians()
	lat := center.Latitude * math.Pi / 180
	lon := center.Longitude * math.Pi / 180

	minLat := lat - angle
	maxLat := lat + angle
	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		return Box{
			MinLat: math.Max(minLat, -math.Pi/2) * 180 / math.Pi,
			MaxLat: math.Min(maxLat, math.Pi/2) * 180 / math.Pi,
			MinLon: -180,
			MaxLon: 180,
		}.pad()
	}

	// widest longitude offset of a spherical cap, see
	// http://janmatuschek.de/LatitudeLongitudeBoundingCoordinates
	ratio := math.Sin(angle) / math.Cos(lat)
	if ratio >= 1 {
		return Box{
			MinLat: minLat * 180 / math.Pi,
			MaxLat: maxLat * 180 / math.Pi,
			MinLon: -180,
			MaxLon: 180,
		}.pad()
	}
	dLon := math.Asin(ratio)
	minLon := (lon - dLon) * 180 / math.Pi
	maxLon := (lon + dLon) * 180 / math.Pi
	if minLon < -180 {
		minLon += 360
	}
	if maxLon > 180 {
		maxLon -= 360
	}
	return Box{
		MinLat: minLat * 180 / math.Pi,
		MaxLat: maxLat * 180 / math.Pi,
		MinLon: minLon,
		MaxLon: maxLon,
	}.pad()
}

func (b Box) pad() Box {
	b.MinLat = math.Max(b.MinLat-boxPadDegrees, -90)
	b.MaxLat = math.Min(b.MaxLat+boxPadDegrees, 90)
	if b.MinLon == -180 && b.MaxLon == 180 {
		return b
	}
	b.MinLon -= boxPadDegrees
	b.MaxLon += boxPadDegrees
	return b
}
