package blocks

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geo"

	"territory-router/internal/models"
)

const (
	// DefaultTargetSize is the preferred number of addresses per block stop
	DefaultTargetSize = 50

	// DefaultAdjacencyMeters is the spatial gap that splits a street run
	// into separate blocks
	DefaultAdjacencyMeters = 50.0

	// maxHouseNumberGap splits a run when consecutive house numbers jump
	// further than this; a jump that large reads as a new block face
	maxHouseNumberGap = 20
)

// Builder groups raw addresses into contiguous per-street block stops so
// later steps route block-by-block instead of jumping between far-apart
// points.
type Builder struct {
	TargetSize      int
	AdjacencyMeters float64
	Anchor          models.AnchorMode
}

// NewBuilder creates a block builder from optimization options, filling in
// defaults for unset values
func NewBuilder(opts models.OptimizeOptions) *Builder {
	b := &Builder{
		TargetSize:      opts.BlockTargetSize,
		AdjacencyMeters: opts.ThresholdMeters,
		Anchor:          opts.Anchor,
	}
	if b.TargetSize <= 0 {
		b.TargetSize = DefaultTargetSize
	}
	if b.AdjacencyMeters <= 0 {
		b.AdjacencyMeters = DefaultAdjacencyMeters
	}
	if b.Anchor == "" {
		b.Anchor = models.AnchorCentroid
	}
	return b
}

// Build partitions the given locatable addresses into block stops. Every
// address lands in exactly one block.
func (b *Builder) Build(addresses []models.AddressPoint) []models.BlockStop {
	if len(addresses) == 0 {
		return []models.BlockStop{}
	}

	byStreet := make(map[string][]models.AddressPoint)
	for _, a := range addresses {
		key := NormalizeStreet(a.StreetName)
		byStreet[key] = append(byStreet[key], a)
	}

	streets := make([]string, 0, len(byStreet))
	for key := range byStreet {
		streets = append(streets, key)
	}
	sort.Strings(streets)

	var stops []models.BlockStop
	for _, street := range streets {
		members := byStreet[street]
		sortStreetRun(members)

		run := []models.AddressPoint{members[0]}
		for _, a := range members[1:] {
			if b.splitsRun(run, a) {
				stops = append(stops, b.makeStop(len(stops), run))
				run = []models.AddressPoint{a}
				continue
			}
			run = append(run, a)
		}
		stops = append(stops, b.makeStop(len(stops), run))
	}

	log.Printf("[BLOCKS] Built block stops: addresses=%d streets=%d blocks=%d", len(addresses), len(streets), len(stops))
	return stops
}

// splitsRun decides whether the next address starts a new block
func (b *Builder) splitsRun(run []models.AddressPoint, next models.AddressPoint) bool {
	if len(run) >= b.TargetSize {
		return true
	}

	prev := run[len(run)-1]
	if geo.Distance(prev.GetCoords().Point(), next.GetCoords().Point()) > b.AdjacencyMeters {
		return true
	}

	prevNum, prevOK := HouseNumber(&prev)
	nextNum, nextOK := HouseNumber(&next)
	if prevOK && nextOK && abs(nextNum-prevNum) > maxHouseNumberGap {
		return true
	}

	return false
}

func (b *Builder) makeStop(id int, run []models.AddressPoint) models.BlockStop {
	ids := make([]int64, len(run))
	for i, a := range run {
		ids[i] = a.ID
	}

	anchor := run[0].GetCoords()
	if b.Anchor == models.AnchorCentroid {
		var lat, lon float64
		for _, a := range run {
			lat += a.Lat
			lon += a.Lon
		}
		anchor = models.Coordinates{
			Lat: lat / float64(len(run)),
			Lon: lon / float64(len(run)),
		}
	}

	return models.BlockStop{
		ID:               id,
		Anchor:           anchor,
		StreetName:       run[0].StreetName,
		MemberAddressIDs: ids,
		Count:            len(run),
	}
}

// sortStreetRun orders a street's addresses by house number where present,
// falling back to coordinate order so unnumbered addresses still form
// stable, contiguous runs
func sortStreetRun(members []models.AddressPoint) {
	sort.Slice(members, func(i, j int) bool {
		ni, iOK := HouseNumber(&members[i])
		nj, jOK := HouseNumber(&members[j])
		if iOK && jOK && ni != nj {
			return ni < nj
		}
		if iOK != jOK {
			return iOK
		}
		if members[i].Lat != members[j].Lat {
			return members[i].Lat < members[j].Lat
		}
		return members[i].Lon < members[j].Lon
	})
}

// NormalizeStreet canonicalizes a street name for grouping
func NormalizeStreet(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// HouseNumber parses the leading integer of an address's house number
func HouseNumber(a *models.AddressPoint) (int, bool) {
	s := strings.TrimSpace(a.HouseNumber)
	if s == "" {
		return 0, false
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
