package testutil

import (
	"context"
	"strconv"

	"github.com/paulmach/orb"

	"territory-router/internal/models"
)

// MockRoadIndex is an in-memory road index for testing. It returns the
// configured segments for every bbox query and records each call.
type MockRoadIndex struct {
	Segments []models.RoadSegment
	Err      error
	Calls    []orb.Bound
}

func NewMockRoadIndex(segments ...models.RoadSegment) *MockRoadIndex {
	return &MockRoadIndex{
		Segments: segments,
		Calls:    []orb.Bound{},
	}
}

func (m *MockRoadIndex) RoadsInBbox(ctx context.Context, bbox orb.Bound) ([]models.RoadSegment, error) {
	m.Calls = append(m.Calls, bbox)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Segments, nil
}

// StraightRoad builds a two-point road segment for test fixtures.
// Points are given lat/lon and stored lon/lat as orb expects.
func StraightRoad(id int64, lat1, lon1, lat2, lon2 float64) models.RoadSegment {
	return models.RoadSegment{
		ID:       id,
		Geometry: orb.LineString{{lon1, lat1}, {lon2, lat2}},
		Class:    "residential",
	}
}

// StreetRun generates n addresses down one street starting at house number
// start, stepping stepDeg in latitude per house. Odd and even numbers land
// on opposite sides of the street line.
func StreetRun(street string, startID int64, n int, startNum int, baseLat, baseLon, stepDeg float64) []models.AddressPoint {
	addrs := make([]models.AddressPoint, 0, n)
	for i := 0; i < n; i++ {
		num := startNum + i
		side := 0.00005
		if num%2 == 0 {
			side = -0.00005
		}
		addrs = append(addrs, models.AddressPoint{
			ID:          startID + int64(i),
			Lat:         baseLat + float64(i)*stepDeg,
			Lon:         baseLon + side,
			HouseNumber: strconv.Itoa(num),
			StreetName:  street,
		})
	}
	return addrs
}
