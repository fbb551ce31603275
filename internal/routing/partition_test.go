package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"territory-router/internal/models"
)

func makeStops(n int) []models.RouteStop {
	stops := make([]models.RouteStop, n)
	for i := range stops {
		stops[i] = models.RouteStop{
			AddressID:   int64(i + 1),
			Sequence:    i,
			WalkTimeSec: 10,
			DistanceM:   15,
		}
	}
	return stops
}

func TestPartitionSingleAgent(t *testing.T) {
	clusters := Partition(makeStops(7), 1)

	require.Len(t, clusters, 1)
	assert.Equal(t, 0, clusters[0].AgentID)
	assert.Len(t, clusters[0].Stops, 7)
}

func TestPartitionBalancedSizes(t *testing.T) {
	clusters := Partition(makeStops(10), 3)

	require.Len(t, clusters, 3)
	assert.Len(t, clusters[0].Stops, 4)
	assert.Len(t, clusters[1].Stops, 3)
	assert.Len(t, clusters[2].Stops, 3)
}

func TestPartitionAllAgentsGetStopsWhenEnough(t *testing.T) {
	// 5 stops across 4 agents must not leave any agent empty
	clusters := Partition(makeStops(5), 4)

	require.Len(t, clusters, 4)
	for _, c := range clusters {
		assert.NotEmpty(t, c.Stops)
	}
}

func TestPartitionOmitsEmptyClusters(t *testing.T) {
	clusters := Partition(makeStops(2), 5)

	require.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.Len(t, c.Stops, 1)
	}
}

func TestPartitionContiguousAndComplete(t *testing.T) {
	stops := makeStops(10)
	clusters := Partition(stops, 3)

	var flattened []int64
	for _, c := range clusters {
		for i, s := range c.Stops {
			// Local sequences restart at 0 and ascend by 1
			assert.Equal(t, i, s.Sequence)
			flattened = append(flattened, s.AddressID)
		}
	}

	// Global order preserved, every stop present exactly once
	require.Len(t, flattened, 10)
	for i, id := range flattened {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestPartitionSumsTotals(t *testing.T) {
	clusters := Partition(makeStops(4), 2)

	require.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.InDelta(t, 20.0, c.TotalTimeSec, 1e-9)
		assert.InDelta(t, 30.0, c.TotalDistanceM, 1e-9)
	}
}

func TestPartitionEmptyStops(t *testing.T) {
	clusters := Partition(nil, 3)
	assert.Empty(t, clusters)
}

func TestPartitionClampsAgentCount(t *testing.T) {
	clusters := Partition(makeStops(3), 0)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Stops, 3)
}
