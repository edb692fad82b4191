package spatial

import "github.com/owldoor/zipradius/internal/geo"

// Linear evaluates the distance to every point on each query.
type Linear struct {
	points []geo.Point
}

func NewLinear(points []geo.Point) *Linear {
	return &Linear{points: points}
}

func (l *Linear) Len() int { return len(l.points) }

func (l *Linear) Within(center geo.Point, radiusMiles float64) ([]Match, int) {
	if !(radiusMiles >= 0) {
		return nil, 0
	}
	var matches []Match
	for i, p := range l.points {
		d := geo.DistanceMiles(center, p)
		if d <= radiusMiles {
			matches = append(matches, Match{Pos: i, DistanceMiles: d})
		}
	}
	sortMatches(matches)
	return matches, len(l.points)
}
