package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"territory-router/internal/geometry"
	"territory-router/internal/models"
)

// SnapBoundaryResponse is the result of a boundary snap
type SnapBoundaryResponse struct {
	Polygon    json.RawMessage `json:"polygon"`
	WasSnapped bool            `json:"was_snapped"`
}

// HandleSnapBoundary handles POST /api/v1/campaigns/{id}/boundary/snap.
// The body is a GeoJSON Polygon geometry with one closed exterior ring.
func (h *Handler) HandleSnapBoundary(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	raw, err := geometry.DecodePolygon(body)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/campaigns/%d/boundary/snap: invalid polygon err=%v", id, err)
		writeDomainError(w, err)
		return
	}

	snapped, wasSnapped, err := h.Optimizer.SnapBoundary(r.Context(), id, raw)
	if err != nil {
		log.Printf("[ERROR] Boundary snap failed: campaign=%d err=%v", id, err)
		writeDomainError(w, err)
		return
	}

	encoded, err := geometry.EncodePolygon(snapped)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/campaigns/%d/boundary/snap: snapped=%v", id, wasSnapped)
	writeJSON(w, http.StatusOK, SnapBoundaryResponse{
		Polygon:    encoded,
		WasSnapped: wasSnapped,
	})
}

// OptimizeRouteRequest carries the optimize call's parameters. Option
// fields are pointers so absent keys fall back to the documented defaults.
type OptimizeRouteRequest struct {
	NAgents int                  `json:"n_agents"`
	Depot   *models.Coordinates  `json:"depot,omitempty"`
	Options *OptimizeOptionsBody `json:"options,omitempty"`
}

// OptimizeOptionsBody mirrors models.OptimizeOptions with optional fields
type OptimizeOptionsBody struct {
	BlockOptimize     *bool    `json:"block_optimize,omitempty"`
	BlockTargetSize   *int     `json:"block_target_size,omitempty"`
	ThresholdMeters   *float64 `json:"threshold_meters,omitempty"`
	SweepNnThresholdM *float64 `json:"sweep_nn_threshold_m,omitempty"`
	SnapToWalkway     *bool    `json:"snap_to_walkway,omitempty"`
	StreetSideBias    *bool    `json:"street_side_bias,omitempty"`
	ReturnToDepot     *bool    `json:"return_to_depot,omitempty"`
	WalkingSpeedKmh   *float64 `json:"walking_speed_kmh,omitempty"`
	BalanceFactor     *float64 `json:"balance_factor,omitempty"`
	StrictHouseOrder  *bool    `json:"strict_house_order,omitempty"`
	UseSolver         *bool    `json:"use_solver,omitempty"`
}

func (b *OptimizeOptionsBody) apply(opts *models.OptimizeOptions) {
	if b == nil {
		return
	}
	if b.BlockOptimize != nil {
		opts.BlockOptimize = *b.BlockOptimize
	}
	if b.BlockTargetSize != nil {
		opts.BlockTargetSize = *b.BlockTargetSize
	}
	if b.ThresholdMeters != nil {
		opts.ThresholdMeters = *b.ThresholdMeters
	}
	if b.SweepNnThresholdM != nil {
		opts.SweepNnThresholdM = *b.SweepNnThresholdM
	}
	if b.SnapToWalkway != nil {
		opts.SnapToWalkway = *b.SnapToWalkway
	}
	if b.StreetSideBias != nil {
		opts.StreetSideBias = *b.StreetSideBias
	}
	if b.ReturnToDepot != nil {
		opts.ReturnToDepot = *b.ReturnToDepot
	}
	if b.WalkingSpeedKmh != nil {
		opts.WalkingSpeedKmh = *b.WalkingSpeedKmh
	}
	if b.BalanceFactor != nil {
		opts.BalanceFactor = *b.BalanceFactor
	}
	if b.StrictHouseOrder != nil {
		opts.StrictHouseOrder = *b.StrictHouseOrder
	}
	if b.UseSolver != nil {
		opts.UseSolver = *b.UseSolver
	}
}

// HandleOptimizeRoute handles POST /api/v1/campaigns/{id}/routes/optimize
func (h *Handler) HandleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}

	var req OptimizeRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/campaigns/%d/routes/optimize: invalid_json err=%v", id, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NAgents == 0 {
		req.NAgents = 1
	}

	opts := models.DefaultOptimizeOptions()
	req.Options.apply(&opts)

	log.Printf("[HTTP] POST /api/v1/campaigns/%d/routes/optimize: agents=%d solver=%v", id, req.NAgents, opts.UseSolver)

	result, err := h.Optimizer.OptimizeRoute(r.Context(), id, req.NAgents, req.Depot, opts)
	if err != nil {
		log.Printf("[ERROR] Route optimization failed: campaign=%d err=%v", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetRouteResponse is the persisted route view
type GetRouteResponse struct {
	Optimized bool                  `json:"optimized"`
	Clusters  []models.RouteCluster `json:"clusters"`
}

// HandleGetRoute handles GET /api/v1/campaigns/{id}/routes
func (h *Handler) HandleGetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}

	optimized, clusters, err := h.Optimizer.GetRoute(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to read route: campaign=%d err=%v", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GetRouteResponse{
		Optimized: optimized,
		Clusters:  clusters,
	})
}
