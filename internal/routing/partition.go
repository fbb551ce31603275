package routing

import "territory-router/internal/models"

// Partition splits a global ordered stop sequence into nAgents contiguous
// clusters. Contiguity is required: interleaving stops between agents would
// destroy the walkable ordering each agent relies on. Stop counts are
// balanced (first len%n clusters take one extra), local sequences are
// re-indexed from 0, totals are summed from member stops, and empty
// clusters (more agents than stops) are omitted.
func Partition(stops []models.RouteStop, nAgents int) []models.RouteCluster {
	if nAgents < 1 {
		nAgents = 1
	}
	if len(stops) == 0 {
		return []models.RouteCluster{}
	}

	base := len(stops) / nAgents
	extra := len(stops) % nAgents

	clusters := make([]models.RouteCluster, 0, nAgents)
	offset := 0
	for agent := 0; agent < nAgents; agent++ {
		size := base
		if agent < extra {
			size++
		}
		if size == 0 {
			continue
		}

		cluster := models.RouteCluster{
			AgentID: agent,
			Stops:   make([]models.RouteStop, size),
		}
		for i := 0; i < size; i++ {
			stop := stops[offset+i]
			stop.Sequence = i
			cluster.Stops[i] = stop
			cluster.TotalTimeSec += stop.WalkTimeSec
			cluster.TotalDistanceM += stop.DistanceM
		}
		clusters = append(clusters, cluster)
		offset += size
	}

	return clusters
}
