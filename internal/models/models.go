package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the coordinates as an orb point ([lon, lat] order)
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	if v < 0 {
		return float64(int(v*100000-0.5)) / 100000
	}
	return float64(int(v*100000+0.5)) / 100000
}

// Campaign represents a canvassing campaign owning a boundary and addresses
type Campaign struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TerritoryBoundary holds a campaign's drawn polygon plus its road-snapped
// form. RawPolygon is preserved indefinitely so a re-snap always starts from
// the user's original drawing, never from a previously snapped result.
type TerritoryBoundary struct {
	CampaignID     int64       `json:"campaign_id"`
	RawPolygon     orb.Polygon `json:"raw_polygon"`
	SnappedPolygon orb.Polygon `json:"snapped_polygon,omitempty"`
	IsSnapped      bool        `json:"is_snapped"`
}

// AddressPoint represents a single deliverable address inside a campaign
type AddressPoint struct {
	ID          int64   `json:"id"`
	CampaignID  int64   `json:"campaign_id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	HouseNumber string  `json:"house_number,omitempty"`
	StreetName  string  `json:"street_name,omitempty"`
	Formatted   string  `json:"formatted,omitempty"`
}

// GetCoords returns the coordinates of the address
func (a *AddressPoint) GetCoords() Coordinates {
	return Coordinates{Lat: a.Lat, Lon: a.Lon}
}

// Locatable reports whether the address carries usable coordinates.
// Addresses at exactly (0,0) are treated as failed geocodes.
func (a *AddressPoint) Locatable() bool {
	if a.Lat == 0 && a.Lon == 0 {
		return false
	}
	return a.Lat >= -90 && a.Lat <= 90 && a.Lon >= -180 && a.Lon <= 180
}

// RoadSegment is a walkable road line sourced from the external road index
type RoadSegment struct {
	ID       int64          `json:"id"`
	Geometry orb.LineString `json:"geometry"`
	Class    string         `json:"class"`
}

// BlockStop aggregates addresses on one contiguous street run. Every
// locatable address belongs to exactly one block stop.
type BlockStop struct {
	ID               int         `json:"id"`
	Anchor           Coordinates `json:"anchor"`
	StreetName       string      `json:"street_name"`
	MemberAddressIDs []int64     `json:"member_address_ids"`
	Count            int         `json:"count"`
}

// RouteStop is a single ordered stop within an agent's route
type RouteStop struct {
	AddressID   int64   `json:"address_id"`
	Sequence    int     `json:"sequence"`
	WalkTimeSec float64 `json:"walk_time_sec,omitempty"`
	DistanceM   float64 `json:"distance_m,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	HouseNumber string  `json:"house_number,omitempty"`
	StreetName  string  `json:"street_name,omitempty"`
	Formatted   string  `json:"formatted,omitempty"`
}

// GetCoords returns the coordinates of the stop
func (s *RouteStop) GetCoords() Coordinates {
	return Coordinates{Lat: s.Lat, Lon: s.Lon}
}

// RouteCluster is one agent's route. Stops carry contiguous ascending
// sequence values starting at 0.
type RouteCluster struct {
	AgentID        int         `json:"agent_id"`
	Stops          []RouteStop `json:"stops"`
	TotalTimeSec   float64     `json:"total_time_sec"`
	TotalDistanceM float64     `json:"total_distance_m"`
}

// RouteAssignment is the persisted per-address routing shape. Nil pointers
// mean the column is cleared (address currently unrouted).
type RouteAssignment struct {
	AddressID   int64    `json:"address_id"`
	ClusterID   *int     `json:"cluster_id"`
	Sequence    *int     `json:"sequence"`
	WalkTimeSec *float64 `json:"walk_time_sec"`
	DistanceM   *float64 `json:"distance_m"`
}

// AnchorMode selects how a block stop's anchor point is derived
type AnchorMode string

const (
	AnchorCentroid AnchorMode = "centroid"
	AnchorMember   AnchorMode = "member"
)

// OptimizeOptions are the recognized knobs for a route optimization run
type OptimizeOptions struct {
	BlockOptimize     bool       `json:"block_optimize"`
	BlockTargetSize   int        `json:"block_target_size"`
	ThresholdMeters   float64    `json:"threshold_meters"`
	SweepNnThresholdM float64    `json:"sweep_nn_threshold_m"`
	// SnapToWalkway is forwarded to the external solver only; the road
	// index itself already restricts queries to walkable highway classes.
	SnapToWalkway bool `json:"snap_to_walkway"`
	StreetSideBias    bool       `json:"street_side_bias"`
	ReturnToDepot     bool       `json:"return_to_depot"`
	WalkingSpeedKmh   float64    `json:"walking_speed_kmh"`
	BalanceFactor     float64    `json:"balance_factor"`
	StrictHouseOrder  bool       `json:"strict_house_order"`
	Anchor            AnchorMode `json:"anchor_mode"`
	UseSolver         bool       `json:"use_solver"`
}

// DefaultOptimizeOptions returns the documented option defaults
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{
		BlockOptimize:     true,
		BlockTargetSize:   50,
		ThresholdMeters:   50,
		SweepNnThresholdM: 500,
		SnapToWalkway:     true,
		WalkingSpeedKmh:   5.0,
		Anchor:            AnchorCentroid,
	}
}

// DebugInfo describes how a route optimization run was produced
type DebugInfo struct {
	RunID            string `json:"run_id"`
	Algorithm        string `json:"algorithm"`
	BlockCount       int    `json:"block_count"`
	LocatableCount   int    `json:"locatable_count"`
	UnlocatableCount int    `json:"unlocatable_count"`
	ElapsedMS        int64  `json:"elapsed_ms"`
}

// OptimizeResult is the full output of a route optimization run
type OptimizeResult struct {
	Clusters []RouteCluster `json:"clusters"`
	Debug    DebugInfo      `json:"debug"`
}
