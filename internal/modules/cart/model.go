// README: Cart line items, extras and the matching rules between them.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Extra is an optional modifier attached to a line item.
type Extra struct {
	ID              int             `json:"id"`
	Name            string          `json:"nombre"`
	AdditionalPrice decimal.Decimal `json:"precio_adicional"`
}

// LineItem is one entry of the cart. Two entries with the same ID but a
// different extras set are distinct lines.
type LineItem struct {
	ID              string           `json:"id"`
	Name            string           `json:"nombre"`
	UnitPrice       decimal.Decimal  `json:"precio"`
	DiscountedPrice *decimal.Decimal `json:"precio_descuento,omitempty"`
	Image           string           `json:"imagen,omitempty"`
	Description     string           `json:"descripcion,omitempty"`
	RestaurantID    string           `json:"restauranteId"`
	RestaurantName  string           `json:"nombre_restaurante,omitempty"`
	Quantity        int              `json:"cantidad"`
	Extras          []Extra          `json:"extras"`
}

// EffectiveUnitPrice is the discounted price when one applies, otherwise the
// unit price, plus every extra.
func (l LineItem) EffectiveUnitPrice() decimal.Decimal {
	base := l.UnitPrice
	if l.DiscountedPrice != nil && l.DiscountedPrice.LessThan(l.UnitPrice) {
		base = *l.DiscountedPrice
	}
	for _, e := range l.Extras {
		base = base.Add(e.AdditionalPrice)
	}
	return base
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ExtraIDs returns the sorted extras ids of the line.
func (l LineItem) ExtraIDs() []int {
	ids := make([]int, 0, len(l.Extras))
	for _, e := range l.Extras {
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	return ids
}

// Matches reports whether l is the line identified by (id, extras); extras
// are compared as a set of ids, order-insensitive.
func (l LineItem) Matches(id string, extraIDs []int) bool {
	if l.ID != id {
		return false
	}
	want := slices.Clone(extraIDs)
	slices.Sort(want)
	want = slices.Compact(want)
	have := slices.Compact(l.ExtraIDs())
	return slices.Equal(have, want)
}

// normalize fills the optional fields so equality and persistence never see
// a nil extras list, and drops a zero discount, which the backend uses for
// "no discount".
func (l LineItem) normalize() LineItem {
	if l.Extras == nil {
		l.Extras = []Extra{}
	} else {
		l.Extras = slices.Clone(l.Extras)
	}
	if l.DiscountedPrice != nil && l.DiscountedPrice.IsZero() {
		l.DiscountedPrice = nil
	}
	return l
}

func (l LineItem) validate() error {
	if l.ID == "" || l.RestaurantID == "" {
		return ErrInvalidItem
	}
	if l.UnitPrice.IsNegative() {
		return ErrInvalidItem
	}
	if d := l.DiscountedPrice; d != nil && (d.IsNegative() || !d.LessThan(l.UnitPrice)) {
		return ErrInvalidItem
	}
	for _, e := range l.Extras {
		if e.AdditionalPrice.IsNegative() {
			return ErrInvalidItem
		}
	}
	return nil
}

// Subtotal sums every line total.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}
