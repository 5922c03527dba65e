// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/backend"
	"delivery/internal/maps"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/checkout"
	"delivery/internal/modules/location"
	"delivery/internal/modules/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func statusOf(err error) int {
	var se *backend.StatusError
	switch {
	case errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNoAddress),
		errors.Is(err, checkout.ErrNoPaymentMethod),
		errors.Is(err, checkout.ErrPaymentDetails),
		errors.Is(err, location.ErrInvalidFix),
		errors.Is(err, maps.ErrInvalidPoint):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrReplaceRequired),
		errors.Is(err, cart.ErrNoPendingReplace),
		errors.Is(err, checkout.ErrSubmitInProgress),
		errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrNoPendingDecision),
		errors.Is(err, order.ErrDecisionExpired),
		errors.Is(err, order.ErrStaleDecision),
		errors.Is(err, location.ErrToggleBusy),
		errors.Is(err, location.ErrStateUnknown),
		errors.Is(err, location.ErrNoFix):
		return http.StatusConflict
	case errors.Is(err, cart.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrQuoteUnavailable),
		errors.Is(err, checkout.ErrPaymentNotRegistered),
		errors.Is(err, checkout.ErrRestaurantLocation),
		errors.Is(err, backend.ErrUnavailable),
		errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}
