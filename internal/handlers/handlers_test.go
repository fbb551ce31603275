package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"territory-router/internal/database"
	"territory-router/internal/geometry"
	"territory-router/internal/models"
	"territory-router/internal/optimizer"
	"territory-router/internal/roadnet"
	"territory-router/internal/routing"
	"territory-router/internal/sqlite"
	"territory-router/internal/testutil"
)

func setupTestHandler(t *testing.T) (*Handler, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := optimizer.New(store, testutil.NewMockRoadIndex(), routing.NewSweepStrategy(), routing.NewCVRPStrategy(""))
	return &Handler{DB: store, Optimizer: svc}, store
}

func testMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", h.HandleHealthCheck)
	mux.HandleFunc("POST /api/v1/campaigns", h.HandleCreateCampaign)
	mux.HandleFunc("PUT /api/v1/campaigns/{id}/addresses", h.HandleImportAddresses)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/boundary/snap", h.HandleSnapBoundary)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/routes/optimize", h.HandleOptimizeRoute)
	mux.HandleFunc("GET /api/v1/campaigns/{id}/routes", h.HandleGetRoute)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createCampaign(t *testing.T, store *sqlite.Store) *models.Campaign {
	t.Helper()
	c, err := store.Campaigns().Create(context.Background(), &models.Campaign{Name: "Handler Test"})
	require.NoError(t, err)
	return c
}

func importStreet(t *testing.T, store *sqlite.Store, campaignID int64, n int) {
	t.Helper()
	addrs := make([]models.AddressPoint, 0, n)
	for i := 0; i < n; i++ {
		addrs = append(addrs, models.AddressPoint{
			Lat:         40.0 + float64(i)*0.0001,
			Lon:         -75.0,
			HouseNumber: strconv.Itoa(i + 1),
			StreetName:  "Main St",
		})
	}
	_, err := store.Addresses().ReplaceForCampaign(context.Background(), campaignID, addrs)
	require.NoError(t, err)
}

func TestHandleHealthCheck(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doRequest(t, testMux(h), "GET", "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleCreateCampaign(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "POST", "/api/v1/campaigns", CreateCampaignRequest{Name: "Fall Push"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var campaign models.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.NotZero(t, campaign.ID)
	assert.Equal(t, "Fall Push", campaign.Name)
}

func TestHandleCreateCampaignMissingName(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "POST", "/api/v1/campaigns", CreateCampaignRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateCampaignInvalidJSON(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "POST", "/api/v1/campaigns", []byte(`{nope`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImportAddresses(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)

	req := ImportAddressesRequest{Addresses: []models.AddressPoint{
		{Lat: 40.0, Lon: -75.0, HouseNumber: "1", StreetName: "Main St"},
		{Lat: 0, Lon: 0, HouseNumber: "3", StreetName: "Main St"},
	}}

	rec := doRequest(t, testMux(h), "PUT", fmt.Sprintf("/api/v1/campaigns/%d/addresses", c.ID), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ImportAddressesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 1, resp.Unlocatable)
}

func TestHandleImportAddressesUnknownCampaign(t *testing.T) {
	h, _ := setupTestHandler(t)

	req := ImportAddressesRequest{Addresses: []models.AddressPoint{{Lat: 40, Lon: -75}}}
	rec := doRequest(t, testMux(h), "PUT", "/api/v1/campaigns/999/addresses", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleImportAddressesBadID(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "PUT", "/api/v1/campaigns/abc/addresses", ImportAddressesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSnapBoundary(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)

	body := []byte(`{"type":"Polygon","coordinates":[[[-75.0,40.0],[-75.0,40.001],[-74.999,40.001],[-75.0,40.0]]]}`)
	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/boundary/snap", c.ID), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SnapBoundaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The mock road index has no roads, so the drawing comes back as-is
	assert.False(t, resp.WasSnapped)
	assert.Contains(t, string(resp.Polygon), `"Polygon"`)
}

func TestHandleSnapBoundaryInvalidGeometry(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)

	body := []byte(`{"type":"Point","coordinates":[-75.0,40.0]}`)
	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/boundary/snap", c.ID), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSnapBoundaryUnknownCampaign(t *testing.T) {
	h, _ := setupTestHandler(t)

	body := []byte(`{"type":"Polygon","coordinates":[[[-75.0,40.0],[-75.0,40.001],[-74.999,40.001],[-75.0,40.0]]]}`)
	rec := doRequest(t, testMux(h), "POST", "/api/v1/campaigns/999/boundary/snap", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOptimizeRoute(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)
	importStreet(t, store, c.ID, 10)

	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/routes/optimize", c.ID),
		OptimizeRouteRequest{NAgents: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.OptimizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Clusters, 2)
	assert.Equal(t, routing.AlgorithmSweep, result.Debug.Algorithm)
}

func TestHandleOptimizeRouteTooFewAddresses(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)
	importStreet(t, store, c.ID, 1)

	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/routes/optimize", c.ID),
		OptimizeRouteRequest{NAgents: 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Need at least 2 addresses")
}

func TestHandleOptimizeRouteUnknownCampaign(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "POST", "/api/v1/campaigns/999/routes/optimize",
		OptimizeRouteRequest{NAgents: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOptimizeRouteSolverUnavailable(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)
	importStreet(t, store, c.ID, 4)

	useSolver := true
	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/routes/optimize", c.ID),
		OptimizeRouteRequest{NAgents: 1, Options: &OptimizeOptionsBody{UseSolver: &useSolver}})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleOptimizeRouteOptionOverrides(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)
	importStreet(t, store, c.ID, 6)

	strict := true
	speed := 4.0
	rec := doRequest(t, testMux(h), "POST", fmt.Sprintf("/api/v1/campaigns/%d/routes/optimize", c.ID),
		OptimizeRouteRequest{
			NAgents: 1,
			Options: &OptimizeOptionsBody{StrictHouseOrder: &strict, WalkingSpeedKmh: &speed},
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.OptimizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Clusters, 1)

	// Strict order walks 1,2,3,... instead of the snake
	for i, stop := range result.Clusters[0].Stops {
		assert.Equal(t, strconv.Itoa(i+1), stop.HouseNumber)
	}
}

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &optimizer.ErrValidation{Reason: "Need at least 2 addresses"}, http.StatusBadRequest},
		{"invalid polygon", &geometry.ErrInvalidPolygon{Reason: "not closed"}, http.StatusBadRequest},
		{"not found", database.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("campaign 3: %w", database.ErrNotFound), http.StatusNotFound},
		{"in progress", &optimizer.ErrOptimizeInProgress{CampaignID: 1}, http.StatusConflict},
		{"solver unavailable", &routing.ErrSolverUnavailable{Reason: "not configured"}, http.StatusBadGateway},
		{"road query failed", &roadnet.ErrRoadQueryFailed{Reason: "timeout"}, http.StatusBadGateway},
		{"persist failed", &database.ErrPersistFailed{Op: "assignment write", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleGetRouteLifecycle(t *testing.T) {
	h, store := setupTestHandler(t)
	c := createCampaign(t, store)
	importStreet(t, store, c.ID, 6)

	mux := testMux(h)

	rec := doRequest(t, mux, "GET", fmt.Sprintf("/api/v1/campaigns/%d/routes", c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var before GetRouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.False(t, before.Optimized)
	assert.Empty(t, before.Clusters)

	rec = doRequest(t, mux, "POST", fmt.Sprintf("/api/v1/campaigns/%d/routes/optimize", c.ID),
		OptimizeRouteRequest{NAgents: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, mux, "GET", fmt.Sprintf("/api/v1/campaigns/%d/routes", c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var after GetRouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.True(t, after.Optimized)
	assert.Len(t, after.Clusters, 2)
}

func TestHandleGetRouteUnknownCampaign(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := doRequest(t, testMux(h), "GET", "/api/v1/campaigns/999/routes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
