package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestLineItem_EffectiveUnitPrice(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		want string
	}{
		{
			name: "no discount",
			item: LineItem{UnitPrice: dec("10")},
			want: "10",
		},
		{
			name: "discount takes precedence",
			item: LineItem{UnitPrice: dec("10"), DiscountedPrice: decPtr("8")},
			want: "8",
		},
		{
			name: "discount not lower is ignored",
			item: LineItem{UnitPrice: dec("10"), DiscountedPrice: decPtr("12")},
			want: "10",
		},
		{
			name: "extras added on top of discount",
			item: LineItem{
				UnitPrice:       dec("10"),
				DiscountedPrice: decPtr("8"),
				Extras:          []Extra{{ID: 1, AdditionalPrice: dec("1.5")}, {ID: 2, AdditionalPrice: dec("0.25")}},
			},
			want: "9.75",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.item.EffectiveUnitPrice()
			if !got.Equal(dec(tt.want)) {
				t.Errorf("EffectiveUnitPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLineItem_Matches(t *testing.T) {
	item := LineItem{ID: "p1", Extras: []Extra{{ID: 3}, {ID: 1}}}

	tests := []struct {
		name string
		id   string
		ids  []int
		want bool
	}{
		{"same set same order", "p1", []int{3, 1}, true},
		{"same set other order", "p1", []int{1, 3}, true},
		{"subset", "p1", []int{1}, false},
		{"superset", "p1", []int{1, 3, 4}, false},
		{"other product", "p2", []int{1, 3}, false},
		{"duplicates collapse", "p1", []int{1, 1, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := item.Matches(tt.id, tt.ids); got != tt.want {
				t.Errorf("Matches(%q, %v) = %v, want %v", tt.id, tt.ids, got, tt.want)
			}
		})
	}
}

func TestLineItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    LineItem
		wantErr bool
	}{
		{"ok", LineItem{ID: "p", RestaurantID: "r", UnitPrice: dec("5")}, false},
		{"missing id", LineItem{RestaurantID: "r", UnitPrice: dec("5")}, true},
		{"missing restaurant", LineItem{ID: "p", UnitPrice: dec("5")}, true},
		{"negative price", LineItem{ID: "p", RestaurantID: "r", UnitPrice: dec("-1")}, true},
		{"discount equal to price", LineItem{ID: "p", RestaurantID: "r", UnitPrice: dec("5"), DiscountedPrice: decPtr("5")}, true},
		{"negative extra", LineItem{ID: "p", RestaurantID: "r", UnitPrice: dec("5"), Extras: []Extra{{ID: 1, AdditionalPrice: dec("-1")}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.normalize().validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLineItem_NormalizeDropsZeroDiscount(t *testing.T) {
	item := LineItem{ID: "p", RestaurantID: "r", UnitPrice: dec("5"), DiscountedPrice: decPtr("0")}.normalize()
	if item.DiscountedPrice != nil {
		t.Fatalf("zero discount kept: %v", item.DiscountedPrice)
	}
	if item.Extras == nil {
		t.Fatal("extras left nil")
	}
	if !item.EffectiveUnitPrice().Equal(dec("5")) {
		t.Errorf("EffectiveUnitPrice() = %s, want 5", item.EffectiveUnitPrice())
	}
}
