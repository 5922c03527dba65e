package types

import (
	"math"
	"testing"
)

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"caracas", Point{Lat: 10.4806, Lng: -66.9036}, true},
		{"null island", Point{}, false},
		{"lat out of range", Point{Lat: 91, Lng: 1}, false},
		{"lng out of range", Point{Lat: 1, Lng: -181}, false},
		{"nan", Point{Lat: math.NaN(), Lng: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPoint_String(t *testing.T) {
	if got := (Point{Lat: 10.5, Lng: -66.25}).String(); got != "10.5,-66.25" {
		t.Errorf("String() = %q", got)
	}
}
