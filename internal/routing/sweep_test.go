package routing

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"territory-router/internal/blocks"
	"territory-router/internal/models"
)

func streetAddresses(street string, startID int64, n, startNum int, baseLat, baseLon float64) []models.AddressPoint {
	addrs := make([]models.AddressPoint, 0, n)
	for i := 0; i < n; i++ {
		num := startNum + i
		side := 0.00005
		if num%2 == 0 {
			side = -0.00005
		}
		addrs = append(addrs, models.AddressPoint{
			ID:          startID + int64(i),
			Lat:         baseLat + float64(i)*0.0001,
			Lon:         baseLon + side,
			HouseNumber: strconv.Itoa(num),
			StreetName:  street,
		})
	}
	return addrs
}

func buildRequest(t *testing.T, addrs []models.AddressPoint, nAgents int) *Request {
	t.Helper()

	opts := models.DefaultOptimizeOptions()
	blockStops := blocks.NewBuilder(opts).Build(addrs)
	require.NotEmpty(t, blockStops)

	byID := make(map[int64]models.AddressPoint, len(addrs))
	for _, a := range addrs {
		byID[a.ID] = a
	}

	return &Request{
		NAgents:   nAgents,
		Blocks:    blockStops,
		Addresses: byID,
		Options:   opts,
	}
}

func TestSweepName(t *testing.T) {
	assert.Equal(t, AlgorithmSweep, NewSweepStrategy().Name())
}

func TestSweepNoBlocksFails(t *testing.T) {
	s := NewSweepStrategy()

	_, err := s.Route(context.Background(), &Request{NAgents: 1})

	var seqErr *ErrSequencingFailed
	assert.ErrorAs(t, err, &seqErr)
}

func TestSweepSingleStreetSnake(t *testing.T) {
	// Ten houses on one street: the walk goes down the odd side ascending
	// and back up the even side descending.
	addrs := streetAddresses("Main St", 1, 10, 1, 40.0, -75.0)
	req := buildRequest(t, addrs, 1)

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Stops, 10)

	var nums []int
	for i, stop := range clusters[0].Stops {
		assert.Equal(t, i, stop.Sequence)
		n, err := strconv.Atoi(stop.HouseNumber)
		require.NoError(t, err)
		nums = append(nums, n)
	}
	assert.Equal(t, []int{1, 3, 5, 7, 9, 10, 8, 6, 4, 2}, nums)
}

func TestSweepSingleSidedStreet(t *testing.T) {
	// House numbers 100 through 118, all even: one side of the street,
	// walked in descending order as the back half of the snake
	addrs := make([]models.AddressPoint, 0, 10)
	for i := 0; i < 10; i++ {
		addrs = append(addrs, models.AddressPoint{
			ID:          int64(i + 1),
			Lat:         40.0 + float64(i)*0.0001,
			Lon:         -75.0,
			HouseNumber: strconv.Itoa(100 + i*2),
			StreetName:  "Main St",
		})
	}
	req := buildRequest(t, addrs, 1)
	require.Len(t, req.Blocks, 1)

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Stops, 10)

	for i, stop := range clusters[0].Stops {
		n, err := strconv.Atoi(stop.HouseNumber)
		require.NoError(t, err)
		assert.Equal(t, 118-i*2, n)
	}
}

func TestSweepComputesWalkMetrics(t *testing.T) {
	addrs := streetAddresses("Main St", 1, 4, 1, 40.0, -75.0)
	req := buildRequest(t, addrs, 1)

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	var totalTime, totalDist float64
	for _, stop := range clusters[0].Stops[1:] {
		assert.Greater(t, stop.DistanceM, 0.0)
		assert.Greater(t, stop.WalkTimeSec, 0.0)
		// 5 km/h walking speed
		assert.InDelta(t, stop.DistanceM/(5.0/3.6), stop.WalkTimeSec, 1e-6)
	}
	for _, stop := range clusters[0].Stops {
		totalTime += stop.WalkTimeSec
		totalDist += stop.DistanceM
	}
	assert.InDelta(t, totalTime, clusters[0].TotalTimeSec, 1e-6)
	assert.InDelta(t, totalDist, clusters[0].TotalDistanceM, 1e-6)
}

func TestSweepThreeStreetsTwoAgents(t *testing.T) {
	// Three streets well over the proximity threshold apart, 100 addresses
	// total, split across two agents
	addrs := streetAddresses("Main St", 1, 40, 1, 40.0, -75.0)
	addrs = append(addrs, streetAddresses("Oak Ave", 100, 30, 1, 40.02, -75.0)...)
	addrs = append(addrs, streetAddresses("Pine Rd", 200, 30, 1, 40.0, -74.98)...)

	req := buildRequest(t, addrs, 2)

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Stops, 50)
	assert.Len(t, clusters[1].Stops, 50)

	// Every address appears exactly once across the clusters
	seen := make(map[int64]int)
	for _, c := range clusters {
		for i, stop := range c.Stops {
			assert.Equal(t, i, stop.Sequence)
			seen[stop.AddressID]++
		}
	}
	require.Len(t, seen, 100)
	for id, count := range seen {
		assert.Equal(t, 1, count, "address %d", id)
	}

	// Streets stay coherent: walking the full concatenated order changes
	// street exactly twice for three streets
	transitions := 0
	prev := ""
	for _, c := range clusters {
		for _, stop := range c.Stops {
			if prev != "" && stop.StreetName != prev {
				transitions++
			}
			prev = stop.StreetName
		}
	}
	assert.Equal(t, 2, transitions)
}

func TestSweepMoreAgentsThanAddresses(t *testing.T) {
	addrs := streetAddresses("Main St", 1, 3, 1, 40.0, -75.0)
	req := buildRequest(t, addrs, 8)

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(clusters), 8)
	for _, c := range clusters {
		assert.NotEmpty(t, c.Stops)
	}
}

func TestSweepCancelledContext(t *testing.T) {
	addrs := streetAddresses("Main St", 1, 4, 1, 40.0, -75.0)
	req := buildRequest(t, addrs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSweepStrategy().Route(ctx, req)
	assert.Error(t, err)
}

func TestSweepVisitsNearestBlockFirst(t *testing.T) {
	near := streetAddresses("Near St", 1, 4, 1, 40.0, -75.0)
	far := streetAddresses("Far St", 100, 4, 1, 40.1, -75.0)

	addrs := append(append([]models.AddressPoint{}, near...), far...)
	req := buildRequest(t, addrs, 1)
	req.Depot = &models.Coordinates{Lat: 40.0, Lon: -75.0}

	clusters, err := NewSweepStrategy().Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Stops, 8)

	assert.Equal(t, "Near St", clusters[0].Stops[0].StreetName)
	assert.Equal(t, "Far St", clusters[0].Stops[7].StreetName)
}
