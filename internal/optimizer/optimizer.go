package optimizer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"territory-router/internal/blocks"
	"territory-router/internal/database"
	"territory-router/internal/geometry"
	"territory-router/internal/models"
	"territory-router/internal/roadnet"
	"territory-router/internal/routing"
)

// bboxPadDeg pads the boundary's bounding box for the road query so roads
// just outside the drawing are still snap candidates (~50m)
const bboxPadDeg = 0.0005

// ErrValidation is returned when an operation's input cannot be optimized.
// It always aborts before any mutation.
type ErrValidation struct {
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ErrOptimizeInProgress is returned when a second optimize call races an
// in-flight run for the same campaign
type ErrOptimizeInProgress struct {
	CampaignID int64
}

func (e *ErrOptimizeInProgress) Error() string {
	return fmt.Sprintf("optimization already in progress for campaign %d", e.CampaignID)
}

// Service coordinates snapping, block building, sequencing, partitioning,
// and persistence. Optimize runs are serialized per campaign; reads are
// lock-free.
type Service struct {
	db    database.DataStore
	roads roadnet.Index
	sweep routing.Strategy
	cvrp  routing.Strategy

	locks sync.Map // campaignID -> *sync.Mutex
}

// New creates the route optimization service
func New(db database.DataStore, roads roadnet.Index, sweep, cvrp routing.Strategy) *Service {
	return &Service{
		db:    db,
		roads: roads,
		sweep: sweep,
		cvrp:  cvrp,
	}
}

// SnapBoundary pulls a campaign's drawn boundary onto nearby roads and
// persists both forms. A road index failure degrades gracefully: the
// original polygon is returned with wasSnapped=false, never an error. The
// raw polygon is stored untouched so later re-snaps start from the drawing.
func (s *Service) SnapBoundary(ctx context.Context, campaignID int64, raw orb.Polygon) (orb.Polygon, bool, error) {
	if err := geometry.ValidateExteriorRing(raw); err != nil {
		return nil, false, &ErrValidation{Reason: err.Error()}
	}
	if _, err := s.db.Campaigns().GetByID(ctx, campaignID); err != nil {
		return nil, false, err
	}

	bbox := raw.Bound().Pad(bboxPadDeg)

	var lines []orb.LineString
	segments, err := s.roads.RoadsInBbox(ctx, bbox)
	if err != nil {
		log.Printf("[SNAP] Road index unavailable, keeping original boundary: campaign=%d err=%v", campaignID, err)
	} else {
		lines = make([]orb.LineString, 0, len(segments))
		for _, seg := range segments {
			lines = append(lines, seg.Geometry)
		}
	}

	snapped, wasSnapped := geometry.Snap(raw, lines)

	boundary := &models.TerritoryBoundary{
		CampaignID: campaignID,
		RawPolygon: raw,
		IsSnapped:  wasSnapped,
	}
	if wasSnapped {
		boundary.SnappedPolygon = snapped
	}
	if err := s.db.Campaigns().UpdateBoundary(ctx, boundary); err != nil {
		return nil, false, err
	}

	log.Printf("[SNAP] Boundary stored: campaign=%d snapped=%v roads=%d", campaignID, wasSnapped, len(lines))
	return snapped, wasSnapped, nil
}

// OptimizeRoute regenerates a campaign's per-agent routes from scratch.
// Previously persisted assignments are cleared and rebuilt atomically; a
// failed run leaves the prior state visible to readers.
func (s *Service) OptimizeRoute(ctx context.Context, campaignID int64, nAgents int, depot *models.Coordinates, opts models.OptimizeOptions) (*models.OptimizeResult, error) {
	if nAgents < 1 {
		return nil, &ErrValidation{Reason: fmt.Sprintf("nAgents must be at least 1, got %d", nAgents)}
	}
	if opts.WalkingSpeedKmh < 0 || opts.BalanceFactor < 0 || opts.BlockTargetSize < 0 || opts.ThresholdMeters < 0 || opts.SweepNnThresholdM < 0 {
		return nil, &ErrValidation{Reason: "options must not be negative"}
	}

	lock := s.lockFor(campaignID)
	if !lock.TryLock() {
		log.Printf("[ROUTING] Rejected concurrent optimize: campaign=%d", campaignID)
		return nil, &ErrOptimizeInProgress{CampaignID: campaignID}
	}
	defer lock.Unlock()

	start := time.Now()

	if _, err := s.db.Campaigns().GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	addrs, err := s.db.Addresses().ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("campaign %d has no addresses: %w", campaignID, database.ErrNotFound)
	}

	locatable := make([]models.AddressPoint, 0, len(addrs))
	for _, a := range addrs {
		if a.Locatable() {
			locatable = append(locatable, a)
		}
	}
	unlocatable := len(addrs) - len(locatable)
	if len(locatable) < 2 {
		return nil, &ErrValidation{Reason: "Need at least 2 addresses"}
	}

	blockStops := s.buildBlocks(locatable, opts)

	addrByID := make(map[int64]models.AddressPoint, len(locatable))
	for _, a := range locatable {
		addrByID[a.ID] = a
	}

	strategy := s.sweep
	if opts.UseSolver {
		// Explicit selection only: a misconfigured solver fails the call
		// rather than silently handing the run to the sweep sequencer.
		strategy = s.cvrp
	}

	log.Printf("[ROUTING] Starting optimization: campaign=%d agents=%d addresses=%d locatable=%d blocks=%d algorithm=%s",
		campaignID, nAgents, len(addrs), len(locatable), len(blockStops), strategy.Name())

	clusters, err := strategy.Route(ctx, &routing.Request{
		Depot:     depot,
		NAgents:   nAgents,
		Blocks:    blockStops,
		Addresses: addrByID,
		Options:   opts,
	})
	if err != nil {
		return nil, err
	}

	assignments := flattenAssignments(clusters)
	if err := s.db.Addresses().ApplyAssignments(ctx, campaignID, assignments); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	log.Printf("[ROUTING] Optimization complete: campaign=%d clusters=%d stops=%d elapsed=%s",
		campaignID, len(clusters), len(assignments), elapsed)

	return &models.OptimizeResult{
		Clusters: clusters,
		Debug: models.DebugInfo{
			RunID:            uuid.NewString(),
			Algorithm:        strategy.Name(),
			BlockCount:       len(blockStops),
			LocatableCount:   len(locatable),
			UnlocatableCount: unlocatable,
			ElapsedMS:        elapsed.Milliseconds(),
		},
	}, nil
}

// GetRoute reads the persisted per-address assignments and regroups them
// into clusters ordered by sequence. Lock-free: a read racing an in-flight
// optimize may observe a transiently empty result, which is documented
// behavior rather than a consistency guarantee.
func (s *Service) GetRoute(ctx context.Context, campaignID int64) (bool, []models.RouteCluster, error) {
	if _, err := s.db.Campaigns().GetByID(ctx, campaignID); err != nil {
		return false, nil, err
	}

	addrs, err := s.db.Addresses().ListByCampaign(ctx, campaignID)
	if err != nil {
		return false, nil, err
	}
	assignments, err := s.db.Addresses().ListAssignments(ctx, campaignID)
	if err != nil {
		return false, nil, err
	}

	addrByID := make(map[int64]models.AddressPoint, len(addrs))
	for _, a := range addrs {
		addrByID[a.ID] = a
	}

	byCluster := make(map[int][]models.RouteStop)
	for _, asg := range assignments {
		if asg.ClusterID == nil || asg.Sequence == nil {
			continue
		}
		addr, ok := addrByID[asg.AddressID]
		if !ok {
			continue
		}
		stop := models.RouteStop{
			AddressID:   asg.AddressID,
			Sequence:    *asg.Sequence,
			Lat:         addr.Lat,
			Lon:         addr.Lon,
			HouseNumber: addr.HouseNumber,
			StreetName:  addr.StreetName,
			Formatted:   addr.Formatted,
		}
		if asg.WalkTimeSec != nil {
			stop.WalkTimeSec = *asg.WalkTimeSec
		}
		if asg.DistanceM != nil {
			stop.DistanceM = *asg.DistanceM
		}
		byCluster[*asg.ClusterID] = append(byCluster[*asg.ClusterID], stop)
	}

	if len(byCluster) == 0 {
		return false, []models.RouteCluster{}, nil
	}

	clusters := make([]models.RouteCluster, 0, len(byCluster))
	for clusterID := range byCluster {
		clusters = append(clusters, models.RouteCluster{AgentID: clusterID})
	}
	sortClusters(clusters)

	for i := range clusters {
		stops := byCluster[clusters[i].AgentID]
		sortStops(stops)
		clusters[i].Stops = stops
		for _, stop := range stops {
			clusters[i].TotalTimeSec += stop.WalkTimeSec
			clusters[i].TotalDistanceM += stop.DistanceM
		}
	}

	return true, clusters, nil
}

func (s *Service) lockFor(campaignID int64) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(campaignID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// buildBlocks groups addresses into block stops, or gives every address its
// own single-member stop when block mode is off
func (s *Service) buildBlocks(locatable []models.AddressPoint, opts models.OptimizeOptions) []models.BlockStop {
	if opts.BlockOptimize {
		return blocks.NewBuilder(opts).Build(locatable)
	}

	stops := make([]models.BlockStop, len(locatable))
	for i, a := range locatable {
		stops[i] = models.BlockStop{
			ID:               i,
			Anchor:           a.GetCoords(),
			StreetName:       a.StreetName,
			MemberAddressIDs: []int64{a.ID},
			Count:            1,
		}
	}
	return stops
}

func flattenAssignments(clusters []models.RouteCluster) []models.RouteAssignment {
	var assignments []models.RouteAssignment
	for _, cluster := range clusters {
		clusterID := cluster.AgentID
		for _, stop := range cluster.Stops {
			seq := stop.Sequence
			walkTime := stop.WalkTimeSec
			distance := stop.DistanceM
			cid := clusterID
			assignments = append(assignments, models.RouteAssignment{
				AddressID:   stop.AddressID,
				ClusterID:   &cid,
				Sequence:    &seq,
				WalkTimeSec: &walkTime,
				DistanceM:   &distance,
			})
		}
	}
	return assignments
}

func sortClusters(clusters []models.RouteCluster) {
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].AgentID < clusters[j].AgentID })
}

func sortStops(stops []models.RouteStop) {
	sort.Slice(stops, func(i, j int) bool { return stops[i].Sequence < stops[j].Sequence })
}
