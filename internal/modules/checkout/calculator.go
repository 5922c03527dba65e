// README: Checkout calculator: shipping + totals, memoized per (cart, address).
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"delivery/internal/backend"
	"delivery/internal/maps"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/pricing"
	"delivery/internal/types"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type RestaurantLookup interface {
	GetRestaurant(ctx context.Context, id string) (*backend.Restaurant, error)
}

// Geocoder resolves addresses saved without coordinates. Optional.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// Quote is the totals breakdown plus the trip it was priced on. TravelMinutes
// and DistanceText are set only when the distance provider estimates travel
// time.
type Quote struct {
	pricing.Totals
	DistanceKm    float64 `json:"distancia_km"`
	RestaurantID  string  `json:"restaurante"`
	AddressID     string  `json:"direccion"`
	TravelMinutes int     `json:"minutos_estimados,omitempty"`
	DistanceText  string  `json:"distancia_texto,omitempty"`
}

type Calculator struct {
	restaurants RestaurantLookup
	distance    maps.DistanceProvider
	pricing     *pricing.Service
	geocoder    Geocoder
	log         *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	seq     uint64 // bumped by every Recompute that reaches the network
	lastSeq uint64 // seq of the call that produced last
	lastKey string
	last    Quote
}

func NewCalculator(restaurants RestaurantLookup, distance maps.DistanceProvider, prices *pricing.Service, log *zap.Logger) *Calculator {
	return &Calculator{
		restaurants: restaurants,
		distance:    distance,
		pricing:     prices,
		log:         log,
	}
}

// WithGeocoder enables geocoding of addresses that carry no coordinates.
func (c *Calculator) WithGeocoder(g Geocoder) *Calculator {
	c.geocoder = g
	return c
}

// Last returns the most recent successful quote, zero before the first one.
func (c *Calculator) Last() Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Recompute prices items for delivery to addr. An unchanged (items, addr)
// pair is answered from memory; concurrent identical calls share one
// computation. On failure the error wraps ErrQuoteUnavailable and Last keeps
// the previous quote.
func (c *Calculator) Recompute(ctx context.Context, items []cart.LineItem, addr *backend.Address) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, ErrEmptyCart
	}
	if addr == nil {
		return Quote{}, ErrNoAddress
	}

	key := fingerprint(items, addr)
	c.mu.Lock()
	if c.lastKey == key {
		q := c.last
		c.mu.Unlock()
		return q, nil
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.compute(ctx, items, addr)
	})
	if err != nil {
		c.log.Warn("checkout recompute failed", zap.String("restaurant", items[0].RestaurantID), zap.Error(err))
		return Quote{}, fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
	}
	q := v.(Quote)

	// a slower call for inputs the user already left must not replace the
	// quote of a newer one
	c.mu.Lock()
	if seq > c.lastSeq {
		c.lastSeq = seq
		c.lastKey = key
		c.last = q
	}
	c.mu.Unlock()
	return q, nil
}

func (c *Calculator) compute(ctx context.Context, items []cart.LineItem, addr *backend.Address) (Quote, error) {
	restaurantID := items[0].RestaurantID
	r, err := c.restaurants.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return Quote{}, fmt.Errorf("get restaurant %s: %w", restaurantID, err)
	}
	origin := types.Point{Lat: r.Latitud, Lng: r.Longitud}
	if !origin.Valid() {
		return Quote{}, ErrRestaurantLocation
	}

	dest, err := c.destination(ctx, addr)
	if err != nil {
		return Quote{}, err
	}

	trip, err := c.trip(ctx, origin, dest)
	if err != nil {
		return Quote{}, fmt.Errorf("distance: %w", err)
	}
	km := trip.Meters / 1000
	shipping, err := c.pricing.Shipping(km)
	if err != nil {
		return Quote{}, err
	}

	c.log.Debug("checkout recomputed",
		zap.String("restaurant", restaurantID),
		zap.Float64("distance_km", km),
		zap.String("shipping", shipping.StringFixed(2)))

	return Quote{
		Totals:        c.pricing.Totals(items, shipping),
		DistanceKm:    km,
		RestaurantID:  restaurantID,
		AddressID:     addr.ID,
		TravelMinutes: int((trip.Duration + time.Minute - 1) / time.Minute),
		DistanceText:  trip.DistanceText,
	}, nil
}

// trip asks for the travel time too when the provider knows it.
func (c *Calculator) trip(ctx context.Context, origin, dest types.Point) (maps.Trip, error) {
	if est, ok := c.distance.(maps.TripEstimator); ok {
		return est.EstimateTrip(ctx, origin, dest)
	}
	meters, err := c.distance.DistanceMeters(ctx, origin, dest)
	if err != nil {
		return maps.Trip{}, err
	}
	return maps.Trip{Meters: meters}, nil
}

func (c *Calculator) destination(ctx context.Context, addr *backend.Address) (types.Point, error) {
	p := types.Point{Lat: addr.Latitud, Lng: addr.Longitud}
	if p.Valid() {
		return p, nil
	}
	if c.geocoder == nil || strings.TrimSpace(addr.DireccionTexto) == "" {
		return types.Point{}, ErrNoAddress
	}
	p, err := c.geocoder.Geocode(ctx, addr.DireccionTexto)
	if err != nil {
		return types.Point{}, fmt.Errorf("geocode address %s: %w", addr.ID, err)
	}
	return p, nil
}

// fingerprint identifies the inputs that change the totals: every line with
// its quantity, prices and extras, plus the delivery point.
func fingerprint(items []cart.LineItem, addr *backend.Address) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.RestaurantID)
		b.WriteByte('|')
		b.WriteString(it.ID)
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteByte('|')
		b.WriteString(it.EffectiveUnitPrice().String())
		for _, id := range it.ExtraIDs() {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(id))
		}
		b.WriteByte(';')
	}
	b.WriteString(addr.ID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(addr.Latitud, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(addr.Longitud, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(addr.DireccionTexto)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
