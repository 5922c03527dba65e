package maps

import (
	"context"
	"fmt"

	"delivery/internal/types"

	"googlemaps.github.io/maps"
)

// RouteService handles interactions with the Google Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key. Extra
// options (e.g. maps.WithBaseURL) are passed through to the client.
func NewRouteService(apiKey string, opts ...maps.ClientOption) (*RouteService, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

func (s *RouteService) directions(ctx context.Context, origin, destination types.Point) (maps.Route, error) {
	if !origin.Valid() || !destination.Valid() {
		return maps.Route{}, ErrInvalidPoint
	}
	r := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return maps.Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return maps.Route{}, ErrNoRoute
	}
	return routes[0], nil
}

// DistanceMeters sums every leg of the first driving route.
func (s *RouteService) DistanceMeters(ctx context.Context, origin, destination types.Point) (float64, error) {
	trip, err := s.EstimateTrip(ctx, origin, destination)
	if err != nil {
		return 0, err
	}
	return trip.Meters, nil
}

// EstimateTrip sums distance and driving time over every leg of the first
// route. DistanceText is the first leg's, as Google renders it.
func (s *RouteService) EstimateTrip(ctx context.Context, origin, destination types.Point) (Trip, error) {
	route, err := s.directions(ctx, origin, destination)
	if err != nil {
		return Trip{}, err
	}
	var trip Trip
	for _, leg := range route.Legs {
		trip.Meters += float64(leg.Distance.Meters)
		trip.Duration += leg.Duration
	}
	trip.DistanceText = route.Legs[0].Distance.HumanReadable
	return trip, nil
}
