// README: Pricing service computes shipping cost and checkout totals.
package pricing

import (
	"errors"
	"math"

	"delivery/internal/modules/cart"
	"delivery/internal/types"

	"github.com/shopspring/decimal"
)

var ErrInvalidDistance = errors.New("distance must be a finite number")

type Service struct {
	rate Rate
}

func NewService(rate Rate) *Service {
	return &Service{rate: rate}
}

func (s *Service) Rate() Rate {
	return s.rate
}

// Shipping prices a trip of distanceKm. Negative distances are treated as
// zero.
func (s *Service) Shipping(distanceKm float64) (decimal.Decimal, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return decimal.Zero, ErrInvalidDistance
	}
	km := decimal.NewFromFloat(math.Max(distanceKm, 0))
	if km.LessThanOrEqual(s.rate.IncludedKm) {
		return types.Round2(s.rate.Base), nil
	}
	extra := km.Sub(s.rate.IncludedKm).Mul(s.rate.PerKm)
	return types.Round2(s.rate.Base.Add(extra)), nil
}

// Totals composes subtotal, tax and shipping for the given lines. Every part
// is rounded to cents so the total is always their exact sum.
func (s *Service) Totals(items []cart.LineItem, shipping decimal.Decimal) Totals {
	subtotal := types.Round2(cart.Subtotal(items))
	tax := types.Round2(subtotal.Mul(s.rate.TaxRate))
	shipping = types.Round2(shipping)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
		Currency: s.rate.Currency,
	}
}

var defaultService = NewService(DefaultRate)

// ShippingCost prices distanceKm with DefaultRate.
func ShippingCost(distanceKm float64) (decimal.Decimal, error) {
	return defaultService.Shipping(distanceKm)
}

// ComputeTotals composes totals with DefaultRate.
func ComputeTotals(items []cart.LineItem, shipping decimal.Decimal) Totals {
	return defaultService.Totals(items, shipping)
}
