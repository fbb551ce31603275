package roadnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"territory-router/internal/models"
)

// Index exposes the external road network as a bounding-box query. There is
// no retry/backoff policy here; callers add retries at the boundary if they
// need them.
type Index interface {
	RoadsInBbox(ctx context.Context, bbox orb.Bound) ([]models.RoadSegment, error)
}

// ErrRoadQueryFailed is returned when the road index is unreachable or
// rejects a query
type ErrRoadQueryFailed struct {
	Reason string
}

func (e *ErrRoadQueryFailed) Error() string {
	return fmt.Sprintf("road network query failed: %s", e.Reason)
}

// walkableClasses are the highway classes a canvasser can actually walk
var walkableClasses = []string{
	"residential", "living_street", "unclassified", "tertiary",
	"secondary", "primary", "service", "footway", "path", "pedestrian",
}

type overpassIndex struct {
	baseURL    string
	httpClient *http.Client
}

type overpassResponse struct {
	Elements []struct {
		Type     string `json:"type"`
		ID       int64  `json:"id"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// NewOverpassIndex creates a road index backed by an Overpass-compatible API
func NewOverpassIndex(baseURL string) Index {
	return &overpassIndex{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (o *overpassIndex) RoadsInBbox(ctx context.Context, bbox orb.Bound) ([]models.RoadSegment, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:25];way[highway~"^(%s)$"](%.6f,%.6f,%.6f,%.6f);out geom;`,
		strings.Join(walkableClasses, "|"),
		bbox.Min[1], bbox.Min[0], bbox.Max[1], bbox.Max[0],
	)

	log.Printf("[ROADS] Bbox query: s=%.5f w=%.5f n=%.5f e=%.5f", bbox.Min[1], bbox.Min[0], bbox.Max[1], bbox.Max[0])

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("[ERROR] Failed to create road index request: err=%v", err)
		return nil, &ErrRoadQueryFailed{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "TerritoryRouter/1.0")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Road index request failed: err=%v", err)
		return nil, &ErrRoadQueryFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Road index error: status=%d body=%s", resp.StatusCode, string(body))
		return nil, &ErrRoadQueryFailed{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("[ERROR] Failed to decode road index response: err=%v", err)
		return nil, &ErrRoadQueryFailed{Reason: err.Error()}
	}

	segments := make([]models.RoadSegment, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}
		line := make(orb.LineString, 0, len(el.Geometry))
		for _, pt := range el.Geometry {
			line = append(line, orb.Point{pt.Lon, pt.Lat})
		}
		segments = append(segments, models.RoadSegment{
			ID:       el.ID,
			Geometry: line,
			Class:    el.Tags["highway"],
		})
	}

	log.Printf("[ROADS] Bbox query complete: segments=%d", len(segments))
	return segments, nil
}
