package routing

import (
	"context"
	"fmt"
	"sort"

	"territory-router/internal/blocks"
	"territory-router/internal/models"
)

// Algorithm names reported in optimization debug output
const (
	AlgorithmSweep = "street-block-sweep-snake"
	AlgorithmCVRP  = "cvrp-solver"
)

// Request is the input for a route calculation
type Request struct {
	Depot     *models.Coordinates
	NAgents   int
	Blocks    []models.BlockStop
	Addresses map[int64]models.AddressPoint
	Options   models.OptimizeOptions
}

// Strategy produces per-agent routes from block stops. Two variants exist:
// the default sweep sequencer and the external CVRP solver. Selection is
// explicit and never falls back silently from one to the other.
type Strategy interface {
	Name() string
	Route(ctx context.Context, req *Request) ([]models.RouteCluster, error)
}

// ErrSequencingFailed is returned when a route sequence cannot be produced
type ErrSequencingFailed struct {
	Reason string
}

func (e *ErrSequencingFailed) Error() string {
	return fmt.Sprintf("sequencing failed: %s", e.Reason)
}

// expandBlock orders a block's member addresses for walking. Default is the
// snake rule: one side of the street ascending (odd house numbers), then the
// other side descending (even), so the route reads as down one side of the
// block and back up the other. StrictHouseOrder instead walks strictly by
// house number. Unnumbered members keep builder order and follow at the end.
func expandBlock(block models.BlockStop, addresses map[int64]models.AddressPoint, opts models.OptimizeOptions) []models.AddressPoint {
	members := make([]models.AddressPoint, 0, len(block.MemberAddressIDs))
	for _, id := range block.MemberAddressIDs {
		if a, ok := addresses[id]; ok {
			members = append(members, a)
		}
	}

	type numbered struct {
		addr models.AddressPoint
		num  int
	}

	var odd, even []numbered
	var unnumbered []models.AddressPoint
	for _, a := range members {
		n, ok := blocks.HouseNumber(&a)
		if !ok {
			unnumbered = append(unnumbered, a)
			continue
		}
		if n%2 == 1 {
			odd = append(odd, numbered{addr: a, num: n})
		} else {
			even = append(even, numbered{addr: a, num: n})
		}
	}

	if opts.StrictHouseOrder {
		all := append(append([]numbered{}, odd...), even...)
		sort.Slice(all, func(i, j int) bool { return all[i].num < all[j].num })
		out := make([]models.AddressPoint, 0, len(members))
		for _, n := range all {
			out = append(out, n.addr)
		}
		return append(out, unnumbered...)
	}

	sort.Slice(odd, func(i, j int) bool { return odd[i].num < odd[j].num })
	sort.Slice(even, func(i, j int) bool { return even[i].num > even[j].num })

	out := make([]models.AddressPoint, 0, len(members))
	for _, n := range odd {
		out = append(out, n.addr)
	}
	for _, n := range even {
		out = append(out, n.addr)
	}
	return append(out, unnumbered...)
}

// DeriveDepot returns the explicit depot if set, otherwise the centroid of
// all block anchors
func DeriveDepot(depot *models.Coordinates, blockStops []models.BlockStop) models.Coordinates {
	if depot != nil {
		return *depot
	}

	var lat, lon float64
	for _, b := range blockStops {
		lat += b.Anchor.Lat
		lon += b.Anchor.Lon
	}
	n := float64(len(blockStops))
	if n == 0 {
		return models.Coordinates{}
	}
	return models.Coordinates{Lat: lat / n, Lon: lon / n}
}
