package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"delivery/internal/types"
)

// OSRMService queries an OSRM routing server for driving distances.
type OSRMService struct {
	baseURL string
	client  *http.Client
}

func NewOSRMService(baseURL string, timeout time.Duration) *OSRMService {
	return &OSRMService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// DistanceMeters reads routes[0].distance. OSRM takes lng,lat pairs.
func (s *OSRMService) DistanceMeters(ctx context.Context, origin, destination types.Point) (float64, error) {
	if !origin.Valid() || !destination.Valid() {
		return 0, ErrInvalidPoint
	}
	url := fmt.Sprintf("%s/route/v1/driving/%s;%s?overview=full&geometries=geojson",
		s.baseURL, lngLat(origin), lngLat(destination))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("osrm build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("osrm decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("osrm status %d: %s", resp.StatusCode, out.Code)
	}
	if len(out.Routes) == 0 {
		return 0, ErrNoRoute
	}
	return out.Routes[0].Distance, nil
}

func lngLat(p types.Point) string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
