package spatial

import (
	"math"
	"sort"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/owldoor/zipradius/internal/geo"
)

// capPadRadians widens the covering cap so that points right on the radius
// survive the chord-angle round trip inside s2.
const capPadRadians = 1e-9

// S2 keeps every point's leaf cell id in sorted order. A query covers the
// search cap with a handful of cells and walks the id range of each one.
type S2 struct {
	points  []geo.Point
	cells   []cellEntry
	coverer *s2.RegionCoverer
}

type cellEntry struct {
	id  s2.CellID
	pos int
}

func NewS2(points []geo.Point) *S2 {
	cells := make([]cellEntry, len(points))
	for i, p := range points {
		cells[i] = cellEntry{id: s2.CellIDFromLatLng(p.LatLng()), pos: i}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].id != cells[j].id {
			return cells[i].id < cells[j].id
		}
		return cells[i].pos < cells[j].pos
	})
	return &S2{
		points:  points,
		cells:   cells,
		coverer: &s2.RegionCoverer{MinLevel: 0, MaxLevel: 16, LevelMod: 1, MaxCells: 16},
	}
}

func (x *S2) Len() int { return len(x.points) }

func (x *S2) Within(center geo.Point, radiusMiles float64) ([]Match, int) {
	if !(radiusMiles >= 0) {
		return nil, 0
	}

	var covering s2.CellUnion
	angle := geo.AngleForMiles(radiusMiles) + s1.Angle(capPadRadians)
	if angle >= math.Pi {
		covering = x.coverer.Covering(s2.FullCap())
	} else {
		covering = x.coverer.Covering(s2.CapFromCenterAngle(s2.PointFromLatLng(center.LatLng()), angle))
	}
	covering.Normalize()

	var (
		matches  []Match
		examined int
	)
	for _, cell := range covering {
		lo, hi := cell.RangeMin(), cell.RangeMax()
		start := sort.Search(len(x.cells), func(i int) bool { return x.cells[i].id >= lo })
		for j := start; j < len(x.cells) && x.cells[j].id <= hi; j++ {
			examined++
			pos := x.cells[j].pos
			d := geo.DistanceMiles(center, x.points[pos])
			if d <= radiusMiles {
				matches = append(matches, Match{Pos: pos, DistanceMiles: d})
			}
		}
	}
	sortMatches(matches)
	return matches, examined
}
