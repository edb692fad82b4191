package spatial

import (
	"fmt"

	"github.com/dhconnelly/rtreego"

	"github.com/owldoor/zipradius/internal/geo"
)

const (
	// dim = 2D, x is longitude and y is latitude
	rtreeDim      = 2
	rtreeMinNodes = 25
	rtreeMaxNodes = 50

	// side length of the rectangle stored for a single point
	pointSideDegrees = 1e-9
)

// RTree narrows each query to the points inside the query circle's bounding
// box, then keeps the ones whose haversine distance is within the radius.
type RTree struct {
	tree   *rtreego.Rtree
	points []geo.Point
}

// pointItem is a postal point stored in the r-tree.
type pointItem struct {
	rect rtreego.Rect
	pos  int
}

func (p *pointItem) Bounds() rtreego.Rect {
	return p.rect
}

func NewRTree(points []geo.Point) (*RTree, error) {
	items := make([]rtreego.Spatial, 0, len(points))
	for i, p := range points {
		// rect, but essentially storing points
		rect, err := rtreego.NewRect(rtreego.Point{p.Longitude, p.Latitude}, []float64{pointSideDegrees, pointSideDegrees})
		if err != nil {
			return nil, fmt.Errorf("indexing point %d (%v): %w", i, p, err)
		}
		items = append(items, &pointItem{rect: rect, pos: i})
	}
	return &RTree{
		tree:   rtreego.NewTree(rtreeDim, rtreeMinNodes, rtreeMaxNodes, items...),
		points: points,
	}, nil
}

func (t *RTree) Len() int { return len(t.points) }

func (t *RTree) Within(center geo.Point, radiusMiles float64) ([]Match, int) {
	if !(radiusMiles >= 0) {
		return nil, 0
	}

	var candidates []rtreego.Spatial
	for _, rect := range searchRects(geo.BoundingBox(center, radiusMiles)) {
		candidates = append(candidates, t.tree.SearchIntersect(rect)...)
	}

	var matches []Match
	for _, c := range candidates {
		item := c.(*pointItem)
		// exact distance so it's a radius vs a square
		d := geo.DistanceMiles(center, t.points[item.pos])
		if d <= radiusMiles {
			matches = append(matches, Match{Pos: item.pos, DistanceMiles: d})
		}
	}
	sortMatches(matches)
	return matches, len(candidates)
}

// searchRects converts a box into one rectangle, or two when it wraps the
// antimeridian. Every edge is pushed out by a point side so that point rects
// lying on the edge, including at lon ±180 and lat ±90, overlap rather than
// touch.
func searchRects(b geo.Box) []rtreego.Rect {
	if !b.CrossesAntimeridian() {
		return []rtreego.Rect{boxRect(b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)}
	}
	return []rtreego.Rect{
		boxRect(b.MinLon, 180, b.MinLat, b.MaxLat),
		boxRect(-180, b.MaxLon, b.MinLat, b.MaxLat),
	}
}

func boxRect(minLon, maxLon, minLat, maxLat float64) rtreego.Rect {
	minLon -= pointSideDegrees
	minLat -= pointSideDegrees
	maxLon += pointSideDegrees
	maxLat += pointSideDegrees
	// both lengths are at least two point sides, NewRect cannot fail
	rect, _ := rtreego.NewRect(rtreego.Point{minLon, minLat}, []float64{maxLon - minLon, maxLat - minLat})
	return rect
}
