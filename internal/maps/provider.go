// README: Distance providers used to price delivery trips.
package maps

import (
	"context"
	"errors"
	"math"
	"time"

	"delivery/internal/types"
)

var (
	ErrNoRoute      = errors.New("no route found")
	ErrInvalidPoint = errors.New("invalid coordinates")
	ErrNoMatch      = errors.New("address not found")
)

// DistanceProvider returns the driving distance in metres between two points.
type DistanceProvider interface {
	DistanceMeters(ctx context.Context, origin, destination types.Point) (float64, error)
}

// Trip is a routed journey between two points.
type Trip struct {
	Meters       float64
	Duration     time.Duration
	DistanceText string
}

// TripEstimator is implemented by providers that also know the travel time.
type TripEstimator interface {
	EstimateTrip(ctx context.Context, origin, destination types.Point) (Trip, error)
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// StraightLine prices trips by great-circle distance scaled by a detour
// factor. Used offline and when no routing backend is configured.
type StraightLine struct {
	Detour float64
}

func (s StraightLine) DistanceMeters(_ context.Context, origin, destination types.Point) (float64, error) {
	if !origin.Valid() || !destination.Valid() {
		return 0, ErrInvalidPoint
	}
	f := s.Detour
	if f <= 0 {
		f = 1
	}
	return HaversineKm(origin, destination) * 1000 * f, nil
}
