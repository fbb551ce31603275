package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"territory-router/internal/database"
	"territory-router/internal/geometry"
	"territory-router/internal/optimizer"
	"territory-router/internal/roadnet"
	"territory-router/internal/routing"
)

// Handler holds the dependencies shared by all HTTP handlers
type Handler struct {
	DB        database.DataStore
	Optimizer *optimizer.Service
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.HealthCheck(r.Context()); err != nil {
		log.Printf("[HTTP] GET /api/v1/health: db unhealthy err=%v", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to encode response: err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP responses with the
// user-visible messages distinguished per class
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *optimizer.ErrValidation
	var polygonErr *geometry.ErrInvalidPolygon
	var inProgressErr *optimizer.ErrOptimizeInProgress
	var solverErr *routing.ErrSolverUnavailable
	var roadErr *roadnet.ErrRoadQueryFailed
	var persistErr *database.ErrPersistFailed

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &polygonErr):
		writeError(w, http.StatusBadRequest, polygonErr.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "campaign or addresses not found")
	case errors.As(err, &inProgressErr):
		writeError(w, http.StatusConflict, "optimization already in progress")
	case errors.As(err, &solverErr):
		writeError(w, http.StatusBadGateway, "solver not configured or unreachable")
	case errors.As(err, &roadErr):
		writeError(w, http.StatusBadGateway, "road network unavailable")
	case errors.As(err, &persistErr):
		writeError(w, http.StatusInternalServerError, "failed to persist route assignments")
	default:
		writeError(w, http.StatusInternalServerError, "optimization failed")
	}
}
