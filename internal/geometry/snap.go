package geometry

import (
	"log"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

const (
	// SnapThresholdMeters is the maximum vertex-to-road distance that
	// still pulls a vertex onto the road
	SnapThresholdMeters = 20.0

	// simplifyToleranceDeg is the Douglas-Peucker tolerance, roughly
	// 8-9 meters at mid-latitudes
	simplifyToleranceDeg = 0.00008

	// nubThresholdMeters drops vertices closer than this to the previously
	// kept vertex, removing zig-zags left by snapping to nearby intersections
	nubThresholdMeters = 2.5
)

// Snap pulls each exterior-ring vertex of a drawn boundary onto the nearest
// road within SnapThresholdMeters, simplifies the result, and validates it.
// If the snapped ring cannot be made valid the input is returned unchanged
// with false. Degenerate inputs (<3 distinct vertices, no roads) are no-ops.
// Never panics on a well-formed polygon.
func Snap(poly orb.Polygon, roads []orb.LineString) (orb.Polygon, bool) {
	if len(poly) == 0 {
		return poly, false
	}

	ring := poly[0]
	if distinctVertexCount(ring) < 3 || len(roads) == 0 {
		log.Printf("[SNAP] Skipping: vertices=%d roads=%d", distinctVertexCount(ring), len(roads))
		return poly, false
	}

	snapped := make(orb.Ring, 0, len(ring))
	moved := 0
	for i, v := range ring[:len(ring)-1] {
		nearest, distM, found := nearestRoadPoint(v, roads)
		if found && distM <= SnapThresholdMeters {
			snapped = append(snapped, nearest)
			moved++
		} else {
			snapped = append(snapped, ring[i])
		}
	}
	snapped = closeRing(snapped)

	simplified, ok := simplify.DouglasPeucker(simplifyToleranceDeg).Simplify(snapped.Clone()).(orb.Ring)
	if !ok || len(simplified) < 4 {
		simplified = snapped
	}
	simplified = closeRing(simplified)
	simplified = dropNubs(simplified)

	result := orb.Polygon{simplified}
	if !ringIsValid(simplified) {
		repaired := repairRing(simplified)
		if !ringIsValid(repaired) {
			log.Printf("[SNAP] Repair failed, returning original polygon: vertices=%d moved=%d", len(ring), moved)
			return poly, false
		}
		result = orb.Polygon{repaired}
	}

	log.Printf("[SNAP] Snapped boundary: vertices_in=%d vertices_out=%d moved=%d", len(ring), len(result[0]), moved)
	return result, true
}

func distinctVertexCount(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// nearestRoadPoint finds the closest point on any road to the vertex,
// measured in meters
func nearestRoadPoint(v orb.Point, roads []orb.LineString) (orb.Point, float64, bool) {
	best := orb.Point{}
	bestDist := -1.0

	for _, road := range roads {
		if len(road) < 2 {
			continue
		}
		_, idx := planar.DistanceFromWithIndex(road, v)
		if idx > len(road)-2 {
			idx = len(road) - 2
		}
		candidate := closestPointOnSegment(road[idx], road[idx+1], v)
		d := geo.Distance(v, candidate)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = candidate
		}
	}

	return best, bestDist, bestDist >= 0
}

// closestPointOnSegment projects p onto segment ab, clamped to the endpoints
func closestPointOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// closeRing ensures first == last without duplicating an already-closed ring
func closeRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return ring
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// dropNubs removes vertices closer than nubThresholdMeters to the previously
// kept vertex
func dropNubs(ring orb.Ring) orb.Ring {
	if len(ring) < 5 {
		return ring
	}

	kept := orb.Ring{ring[0]}
	for _, p := range ring[1 : len(ring)-1] {
		prev := kept[len(kept)-1]
		if geo.Distance(prev, p) < nubThresholdMeters {
			continue
		}
		kept = append(kept, p)
	}
	// The closing vertex is ring[0] itself, so a nub next to the ring start
	// shows up as a last kept vertex within the threshold of kept[0].
	if len(kept) > 1 && geo.Distance(kept[len(kept)-1], kept[0]) < nubThresholdMeters {
		kept = kept[:len(kept)-1]
	}
	kept = closeRing(kept)

	if len(kept) < 4 {
		return ring
	}
	return kept
}

// ringIsValid checks closure, minimum size, nonzero area, and the absence
// of self-intersections
func ringIsValid(ring orb.Ring) bool {
	if len(ring) < 4 {
		return false
	}
	if ring[0] != ring[len(ring)-1] {
		return false
	}
	if math.Abs(planar.Area(ring)) == 0 {
		return false
	}
	return !ringSelfIntersects(ring)
}

// ringSelfIntersects tests every non-adjacent segment pair for a proper
// crossing
func ringSelfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // segments
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// Skip the closing segment against the first segment,
			// they share the ring's start vertex.
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper intersection between segments pq and rs
func segmentsCross(p, q, r, s orb.Point) bool {
	d1 := cross(r, s, p)
	d2 := cross(r, s, q)
	d3 := cross(p, q, r)
	d4 := cross(p, q, s)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// Collinear overlaps count as invalid geometry as well
	if d1 == 0 && onSegment(r, s, p) {
		return true
	}
	if d2 == 0 && onSegment(r, s, q) {
		return true
	}
	if d3 == 0 && onSegment(p, q, r) {
		return true
	}
	if d4 == 0 && onSegment(p, q, s) {
		return true
	}

	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether c lies strictly inside segment ab (endpoints
// excluded, so shared ring vertices don't flag as intersections)
func onSegment(a, b, c orb.Point) bool {
	if c == a || c == b {
		return false
	}
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

// repairRing is the best-effort stand-in for a zero-distance buffer: it
// removes duplicate consecutive vertices, then drops vertices participating
// in crossing segments until the ring stops self-intersecting or gets too
// small to fix.
func repairRing(ring orb.Ring) orb.Ring {
	ring = dedupeRing(ring)

	for attempt := 0; attempt < len(ring); attempt++ {
		if len(ring) < 4 {
			return ring
		}

		j, found := firstCrossing(ring)
		if !found {
			return ring
		}

		// Drop the vertex opening the later of the two crossing segments
		next := make(orb.Ring, 0, len(ring)-1)
		next = append(next, ring[:j]...)
		next = append(next, ring[j+1:]...)
		ring = closeRing(dedupeRing(next))
	}

	return ring
}

func firstCrossing(ring orb.Ring) (int, bool) {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return j, true
			}
		}
	}
	return 0, false
}

func dedupeRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return ring
	}
	out := orb.Ring{ring[0]}
	for _, p := range ring[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return closeRing(out)
}
