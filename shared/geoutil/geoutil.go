// Package geoutil wraps the planar geometry operations the validation gates
// and the normalizer rely on. All geometries are WGS84 lon/lat polygons or
// multi-polygons.
package geoutil

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/pkg/errors"
)

// MinRingVertices is the smallest legal closed ring (triangle + closing vertex).
const MinRingVertices = 4

// Polygons flattens a polygonal geometry into its polygons. Non-polygonal
// geometries yield nil.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}

// IsPolygonal reports whether g is a polygon or multi-polygon.
func IsPolygonal(g orb.Geometry) bool {
	return Polygons(g) != nil
}

// IsEmpty reports whether g carries no rings or only empty rings.
func IsEmpty(g orb.Geometry) bool {
	polys := Polygons(g)
	if len(polys) == 0 {
		return true
	}
	for _, p := range polys {
		for _, r := range p {
			if len(r) > 0 {
				return false
			}
		}
	}
	return true
}

// RingClosed reports whether the ring's first and last vertices coincide.
func RingClosed(r orb.Ring) bool {
	if len(r) < 2 {
		return false
	}
	return r[0] == r[len(r)-1]
}

// Finite reports whether every coordinate of g is a finite number.
func Finite(g orb.Geometry) bool {
	ok := true
	eachPoint(g, func(p orb.Point) {
		if math.IsNaN(p[0]) || math.IsInf(p[0], 0) || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			ok = false
		}
	})
	return ok
}

// InWGS84Range reports whether every coordinate is inside
// [-180,180] x [-90,90].
func InWGS84Range(g orb.Geometry) bool {
	ok := true
	eachPoint(g, func(p orb.Point) {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			ok = false
		}
	})
	return ok
}

// SelfIntersects reports whether any two non-adjacent edges of the ring cross.
// O(n^2) over the ring edges, which is acceptable post-simplification.
func SelfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // closed ring, last vertex repeats the first
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (shared vertex) including the wrap-around pair.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 orb.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// Centroid returns the area-weighted centroid of the geometry.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

// Area returns the absolute planar area of the geometry in square degrees.
func Area(g orb.Geometry) float64 {
	return math.Abs(planar.Area(g))
}

// BBox returns the inclusive (minLon, minLat, maxLon, maxLat) tuple.
func BBox(g orb.Geometry) [4]float64 {
	b := g.Bound()
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// DistanceKM returns the great-circle distance between two points in km.
func DistanceKM(a, b orb.Point) float64 {
	return geo.Distance(a, b) / 1000.0
}

// Contains reports whether the polygonal geometry contains the point.
func Contains(g orb.Geometry, p orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	default:
		return false
	}
}

// IoU computes intersection-over-union of two polygonal geometries by
// deterministic grid sampling over the union of their bounds. The sample
// count trades accuracy against cost; 256 per axis resolves IoU to well
// under the 0.01 severity band width used by the cross validator.
func IoU(a, b orb.Geometry) float64 {
	const samples = 256
	if IsEmpty(a) || IsEmpty(b) {
		return 0
	}
	bound := a.Bound().Union(b.Bound())
	w := bound.Max[0] - bound.Min[0]
	h := bound.Max[1] - bound.Min[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	var inter, union int
	for i := 0; i < samples; i++ {
		for j := 0; j < samples; j++ {
			p := orb.Point{
				bound.Min[0] + (float64(i)+0.5)*w/samples,
				bound.Min[1] + (float64(j)+0.5)*h/samples,
			}
			inA := Contains(a, p)
			inB := Contains(b, p)
			if inA && inB {
				inter++
			}
			if inA || inB {
				union++
			}
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// VertexCount returns the total number of vertices across all rings.
func VertexCount(g orb.Geometry) int {
	n := 0
	eachPoint(g, func(orb.Point) { n++ })
	return n
}

// SimplifyPreservingArea runs Douglas-Peucker with the largest tolerance that
// keeps at least minAreaRatio of the original area, then enforces the vertex
// cap. Tolerances are probed on a fixed halving schedule so the result is
// deterministic for identical inputs.
func SimplifyPreservingArea(g orb.Geometry, minAreaRatio float64, maxVertices int) orb.Geometry {
	if !IsPolygonal(g) || IsEmpty(g) {
		return g
	}
	origArea := Area(g)
	if origArea == 0 {
		return g
	}
	tolerance := 0.01 // degrees, ~1.1km at the equator
	best := g
	for i := 0; i < 12; i++ {
		candidate := simplify.DouglasPeucker(tolerance).Simplify(Clone(g))
		if candidate != nil && IsPolygonal(candidate) && !IsEmpty(candidate) {
			ratio := Area(candidate) / origArea
			if ratio >= minAreaRatio && ratio <= 1/minAreaRatio {
				best = candidate
				break
			}
		}
		tolerance /= 2
	}
	if maxVertices > 0 && VertexCount(best) > maxVertices {
		// The cap wins over fidelity; coarsen until under the cap.
		capTol := tolerance
		for i := 0; i < 12 && VertexCount(best) > maxVertices; i++ {
			capTol *= 2
			candidate := simplify.DouglasPeucker(capTol).Simplify(Clone(g))
			if candidate != nil && IsPolygonal(candidate) && !IsEmpty(candidate) {
				best = candidate
			}
		}
	}
	return best
}

// CanonicalBytes returns a deterministic byte encoding of the geometry,
// suitable for hashing into a Merkle leaf.
func CanonicalBytes(g orb.Geometry) ([]byte, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal geometry")
	}
	return data, nil
}

// Clone deep-copies a polygonal geometry. The simplifier mutates its input,
// so callers that need the original intact must pass a copy.
func Clone(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		return v.Clone()
	case orb.MultiPolygon:
		return v.Clone()
	default:
		return g
	}
}

func eachPoint(g orb.Geometry, fn func(orb.Point)) {
	for _, poly := range Polygons(g) {
		for _, ring := range poly {
			for _, p := range ring {
				fn(p)
			}
		}
	}
}
