package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrInvalidPolygon is returned when a boundary payload is not a usable
// single-ring GeoJSON polygon
type ErrInvalidPolygon struct {
	Reason string
}

func (e *ErrInvalidPolygon) Error() string {
	return fmt.Sprintf("invalid polygon: %s", e.Reason)
}

// DecodePolygon parses a GeoJSON geometry into a polygon with a single
// closed exterior ring
func DecodePolygon(data []byte) (orb.Polygon, error) {
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, &ErrInvalidPolygon{Reason: err.Error()}
	}

	poly, ok := geom.Geometry().(orb.Polygon)
	if !ok {
		return nil, &ErrInvalidPolygon{Reason: fmt.Sprintf("expected Polygon, got %s", geom.Type)}
	}

	if err := ValidateExteriorRing(poly); err != nil {
		return nil, err
	}

	return poly, nil
}

// EncodePolygon serializes a polygon back to GeoJSON
func EncodePolygon(poly orb.Polygon) ([]byte, error) {
	data, err := json.Marshal(geojson.NewGeometry(poly))
	if err != nil {
		return nil, fmt.Errorf("failed to encode polygon: %w", err)
	}
	return data, nil
}

// ValidateExteriorRing checks the single-ring boundary invariant:
// one exterior ring, closed (first == last), at least 4 coordinates
func ValidateExteriorRing(poly orb.Polygon) error {
	if len(poly) == 0 {
		return &ErrInvalidPolygon{Reason: "polygon has no rings"}
	}

	ring := poly[0]
	if len(ring) < 4 {
		return &ErrInvalidPolygon{Reason: fmt.Sprintf("exterior ring has %d coordinates, need at least 4", len(ring))}
	}
	if ring[0] != ring[len(ring)-1] {
		return &ErrInvalidPolygon{Reason: "exterior ring is not closed"}
	}

	return nil
}
