// README: Delivery rate and the totals breakdown shown at checkout.
package pricing

import (
	"github.com/shopspring/decimal"

	"delivery/internal/types"
)

// Rate describes how shipping and tax are charged. Distance up to IncludedKm
// costs Base; every further kilometre adds PerKm.
type Rate struct {
	Base       decimal.Decimal
	PerKm      decimal.Decimal
	IncludedKm decimal.Decimal
	TaxRate    decimal.Decimal
	Currency   string
}

// DefaultRate is the tariff the backend publishes for every restaurant.
var DefaultRate = Rate{
	Base:       decimal.NewFromInt(1),
	PerKm:      decimal.RequireFromString("0.45"),
	IncludedKm: decimal.NewFromInt(1),
	TaxRate:    decimal.RequireFromString("0.16"),
	Currency:   types.CurrencyUSD,
}

// Totals is the checkout breakdown. Tax, Shipping and Total are rounded to
// cents; Subtotal is the exact sum of the lines.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"iva"`
	Shipping decimal.Decimal `json:"envio"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"moneda"`
}
