package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/paulmach/orb/geo"

	"territory-router/internal/models"
)

// ErrSolverUnavailable is returned when the external CVRP solver is not
// configured or cannot be reached. The caller must surface this instead of
// silently substituting the sweep sequencer, so it is always clear which
// algorithm produced a given route.
type ErrSolverUnavailable struct {
	Reason string
}

func (e *ErrSolverUnavailable) Error() string {
	return fmt.Sprintf("cvrp solver unavailable: %s", e.Reason)
}

// cvrpStrategy delegates multi-agent routing to an external
// capacity-constrained vehicle routing solver
type cvrpStrategy struct {
	baseURL    string
	httpClient *http.Client
}

// NewCVRPStrategy creates the external-solver strategy. An empty baseURL
// means the solver is not configured; Route fails explicitly in that case.
func NewCVRPStrategy(baseURL string) Strategy {
	return &cvrpStrategy{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *cvrpStrategy) Name() string { return AlgorithmCVRP }

type cvrpStop struct {
	ID     int     `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Demand int     `json:"demand"`
}

type cvrpRequest struct {
	Depot    models.Coordinates `json:"depot"`
	Stops    []cvrpStop         `json:"stops"`
	Vehicles int                `json:"vehicles"`
	Options  cvrpOptions        `json:"options"`
}

type cvrpOptions struct {
	StreetSideBias  bool    `json:"street_side_bias"`
	ReturnToDepot   bool    `json:"return_to_depot"`
	SnapToWalkway   bool    `json:"snap_to_walkway"`
	BalanceFactor   float64 `json:"balance_factor"`
	WalkingSpeedKmh float64 `json:"walking_speed_kmh"`
}

type cvrpResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Vehicle int `json:"vehicle"`
		Stops   []struct {
			ID    int `json:"id"`
			Order int `json:"order"`
		} `json:"stops"`
	} `json:"routes"`
}

func (c *cvrpStrategy) Route(ctx context.Context, req *Request) ([]models.RouteCluster, error) {
	if c.baseURL == "" {
		return nil, &ErrSolverUnavailable{Reason: "solver not configured"}
	}
	if len(req.Blocks) == 0 {
		return nil, &ErrSequencingFailed{Reason: "no block stops to sequence"}
	}

	depot := DeriveDepot(req.Depot, req.Blocks)

	payload := cvrpRequest{
		Depot:    depot,
		Stops:    make([]cvrpStop, 0, len(req.Blocks)),
		Vehicles: req.NAgents,
		Options: cvrpOptions{
			StreetSideBias:  req.Options.StreetSideBias,
			ReturnToDepot:   req.Options.ReturnToDepot,
			SnapToWalkway:   req.Options.SnapToWalkway,
			BalanceFactor:   req.Options.BalanceFactor,
			WalkingSpeedKmh: req.Options.WalkingSpeedKmh,
		},
	}
	for _, b := range req.Blocks {
		payload.Stops = append(payload.Stops, cvrpStop{
			ID:     b.ID,
			Lat:    b.Anchor.Lat,
			Lon:    b.Anchor.Lon,
			Demand: b.Count,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ErrSolverUnavailable{Reason: err.Error()}
	}

	log.Printf("[CVRP] Solver request: blocks=%d vehicles=%d", len(payload.Stops), req.NAgents)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, &ErrSolverUnavailable{Reason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[ERROR] CVRP solver request failed: err=%v", err)
		return nil, &ErrSolverUnavailable{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] CVRP solver error: status=%d body=%s", resp.StatusCode, string(raw))
		return nil, &ErrSolverUnavailable{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw))}
	}

	var parsed cvrpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ErrSolverUnavailable{Reason: err.Error()}
	}
	if parsed.Code != "Ok" {
		return nil, &ErrSolverUnavailable{Reason: fmt.Sprintf("solver error: %s", parsed.Code)}
	}

	return c.expandRoutes(depot, &parsed, req)
}

// expandRoutes turns the solver's per-vehicle block orderings back into
// per-address clusters, using the same within-block expansion as the
// default path
func (c *cvrpStrategy) expandRoutes(depot models.Coordinates, resp *cvrpResponse, req *Request) ([]models.RouteCluster, error) {
	blockByID := make(map[int]models.BlockStop, len(req.Blocks))
	for _, b := range req.Blocks {
		blockByID[b.ID] = b
	}

	clusters := make([]models.RouteCluster, 0, len(resp.Routes))
	for _, route := range resp.Routes {
		if len(route.Stops) == 0 {
			continue
		}

		ordered := append([]struct {
			ID    int `json:"id"`
			Order int `json:"order"`
		}{}, route.Stops...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

		cluster := models.RouteCluster{AgentID: route.Vehicle}
		prev := depot
		for _, solverStop := range ordered {
			block, ok := blockByID[solverStop.ID]
			if !ok {
				return nil, &ErrSequencingFailed{Reason: fmt.Sprintf("solver returned unknown block id %d", solverStop.ID)}
			}
			for _, addr := range expandBlock(block, req.Addresses, req.Options) {
				distM := geo.Distance(prev.Point(), addr.GetCoords().Point())
				stop := models.RouteStop{
					AddressID:   addr.ID,
					Sequence:    len(cluster.Stops),
					DistanceM:   distM,
					WalkTimeSec: walkTimeSec(distM, req.Options.WalkingSpeedKmh),
					Lat:         addr.Lat,
					Lon:         addr.Lon,
					HouseNumber: addr.HouseNumber,
					StreetName:  addr.StreetName,
					Formatted:   addr.Formatted,
				}
				cluster.Stops = append(cluster.Stops, stop)
				cluster.TotalTimeSec += stop.WalkTimeSec
				cluster.TotalDistanceM += stop.DistanceM
				prev = addr.GetCoords()
			}
		}

		clusters = append(clusters, cluster)
	}

	log.Printf("[CVRP] Solver routes expanded: vehicles=%d clusters=%d", len(resp.Routes), len(clusters))
	return clusters, nil
}
