// Package spatial answers "which points lie within r miles of c" over a fixed
// set of points. Every implementation returns the same matches in the same
// order: ascending distance, ties broken by insertion position.
package spatial

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/owldoor/zipradius/internal/geo"
)

// Match is a point within the query radius. Pos is the point's position in
// the slice the index was built from.
type Match struct {
	Pos           int
	DistanceMiles float64
}

// Index finds points within a radius of a center.
type Index interface {
	// Within returns every point whose distance to center is at most
	// radiusMiles, sorted, and the number of points whose distance was
	// evaluated along the way.
	Within(center geo.Point, radiusMiles float64) (matches []Match, examined int)
	// Len is the number of indexed points.
	Len() int
}

// Kind names an Index implementation.
type Kind string

const (
	KindLinear Kind = "linear"
	KindRTree  Kind = "rtree"
	KindS2     Kind = "s2"
)

// Kinds lists the supported index kinds.
var Kinds = []Kind{KindLinear, KindRTree, KindS2}

// ParseKind validates a configured index name. The empty string selects the
// linear scan.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindLinear, nil
	}
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("unknown spatial index %q (valid: %v)", s, Kinds)
	}
	return k, nil
}

// New builds an index of the given kind over points. The slice is retained
// and must not be modified afterwards.
func New(kind Kind, points []geo.Point) (Index, error) {
	switch kind {
	case KindLinear, "":
		return NewLinear(points), nil
	case KindRTree:
		return NewRTree(points)
	case KindS2:
		return NewS2(points), nil
	default:
		return nil, fmt.Errorf("unknown spatial index %q", kind)
	}
}

func sortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(a.DistanceMiles, b.DistanceMiles); c != 0 {
			return c
		}
		return cmp.Compare(a.Pos, b.Pos)
	})
}
