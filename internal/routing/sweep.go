package routing

import (
	"context"
	"log"
	"math"

	"github.com/paulmach/orb/geo"

	"territory-router/internal/models"
)

// sweepStrategy is the default locality-biased sequencer. Blocks are visited
// by nearest-neighbor expansion from the depot; when no unvisited block lies
// within the proximity threshold, an angular sweep around the depot picks
// the next block instead of accepting an absurd long jump.
type sweepStrategy struct{}

// NewSweepStrategy creates the default street-block-sweep-snake strategy
func NewSweepStrategy() Strategy {
	return &sweepStrategy{}
}

func (s *sweepStrategy) Name() string { return AlgorithmSweep }

func (s *sweepStrategy) Route(ctx context.Context, req *Request) ([]models.RouteCluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Blocks) == 0 {
		return nil, &ErrSequencingFailed{Reason: "no block stops to sequence"}
	}

	depot := DeriveDepot(req.Depot, req.Blocks)
	threshold := req.Options.SweepNnThresholdM
	if threshold <= 0 {
		threshold = models.DefaultOptimizeOptions().SweepNnThresholdM
	}

	order := s.sequenceBlocks(depot, req.Blocks, threshold)

	stops := make([]models.RouteStop, 0, totalMembers(req.Blocks))
	prev := depot
	for _, block := range order {
		for _, addr := range expandBlock(block, req.Addresses, req.Options) {
			distM := geo.Distance(prev.Point(), addr.GetCoords().Point())
			stops = append(stops, models.RouteStop{
				AddressID:   addr.ID,
				Sequence:    len(stops),
				DistanceM:   distM,
				WalkTimeSec: walkTimeSec(distM, req.Options.WalkingSpeedKmh),
				Lat:         addr.Lat,
				Lon:         addr.Lon,
				HouseNumber: addr.HouseNumber,
				StreetName:  addr.StreetName,
				Formatted:   addr.Formatted,
			})
			prev = addr.GetCoords()
		}
	}

	log.Printf("[ROUTING] Sweep sequence complete: blocks=%d stops=%d agents=%d", len(order), len(stops), req.NAgents)
	return Partition(stops, req.NAgents), nil
}

// sequenceBlocks orders block stops by nearest-neighbor with an angular
// sweep fallback
func (s *sweepStrategy) sequenceBlocks(depot models.Coordinates, blockStops []models.BlockStop, thresholdM float64) []models.BlockStop {
	remaining := make(map[int]models.BlockStop, len(blockStops))
	for _, b := range blockStops {
		remaining[b.ID] = b
	}

	order := make([]models.BlockStop, 0, len(blockStops))
	current := depot
	fallbacks := 0

	for len(remaining) > 0 {
		nextID, dist := nearestBlock(current, remaining)

		if dist > thresholdM {
			// Nothing nearby: sweep to the angularly next block around
			// the depot instead of jumping across the territory.
			nextID = angularNext(depot, current, remaining)
			fallbacks++
		}

		block := remaining[nextID]
		order = append(order, block)
		delete(remaining, nextID)
		current = block.Anchor
	}

	if fallbacks > 0 {
		log.Printf("[ROUTING] Angular sweep fallback used: times=%d threshold=%.0fm", fallbacks, thresholdM)
	}
	return order
}

func nearestBlock(from models.Coordinates, remaining map[int]models.BlockStop) (int, float64) {
	bestID := -1
	bestDist := math.MaxFloat64
	for id, b := range remaining {
		d := geo.Distance(from.Point(), b.Anchor.Point())
		if d < bestDist || (d == bestDist && id < bestID) {
			bestDist = d
			bestID = id
		}
	}
	return bestID, bestDist
}

// angularNext picks the unvisited block whose bearing around the depot
// follows the current position's bearing most closely (clockwise wrap)
func angularNext(depot, current models.Coordinates, remaining map[int]models.BlockStop) int {
	currentAngle := bearingAround(depot, current)

	bestID := -1
	bestDelta := math.MaxFloat64
	for id, b := range remaining {
		delta := bearingAround(depot, b.Anchor) - currentAngle
		if delta < 0 {
			delta += 2 * math.Pi
		}
		if delta < bestDelta || (delta == bestDelta && id < bestID) {
			bestDelta = delta
			bestID = id
		}
	}
	return bestID
}

func bearingAround(depot, p models.Coordinates) float64 {
	return math.Atan2(p.Lat-depot.Lat, p.Lon-depot.Lon)
}

func walkTimeSec(distM, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = models.DefaultOptimizeOptions().WalkingSpeedKmh
	}
	return distM / (speedKmh / 3.6)
}

func totalMembers(blockStops []models.BlockStop) int {
	n := 0
	for _, b := range blockStops {
		n += b.Count
	}
	return n
}
