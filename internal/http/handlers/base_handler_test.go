package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"delivery/internal/backend"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/checkout"
	"delivery/internal/modules/location"
	"delivery/internal/modules/order"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid item", cart.ErrInvalidItem, http.StatusBadRequest},
		{"bad quantity", cart.ErrInvalidQuantity, http.StatusBadRequest},
		{"payment details", checkout.ErrPaymentDetails, http.StatusBadRequest},
		{"no address inside quote failure", fmt.Errorf("%w: %w", checkout.ErrQuoteUnavailable, checkout.ErrNoAddress), http.StatusBadRequest},
		{"replace required", cart.ErrReplaceRequired, http.StatusConflict},
		{"expired decision", order.ErrDecisionExpired, http.StatusConflict},
		{"stale decision", order.ErrStaleDecision, http.StatusConflict},
		{"toggle busy", location.ErrToggleBusy, http.StatusConflict},
		{"cart not loaded", cart.ErrNotLoaded, http.StatusServiceUnavailable},
		{"not found", fmt.Errorf("%w: default address", backend.ErrNotFound), http.StatusNotFound},
		{"quote unavailable", fmt.Errorf("%w: %w", checkout.ErrQuoteUnavailable, errors.New("timeout")), http.StatusBadGateway},
		{"backend status", &backend.StatusError{Method: "GET", Path: "/x", Code: 500}, http.StatusBadGateway},
		{"breaker open", backend.ErrUnavailable, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusOf(tt.err); got != tt.want {
				t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	got, err := parseIDs("3, 7,1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 7 || got[2] != 1 {
		t.Errorf("parseIDs = %v", got)
	}
	if _, err := parseIDs("3,x"); err == nil {
		t.Error("expected error for non-numeric id")
	}
	if got, _ := parseIDs(""); got != nil {
		t.Errorf("empty input = %v, want nil", got)
	}
}
