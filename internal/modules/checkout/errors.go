package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoAddress          = errors.New("no delivery address")
	ErrNoPaymentMethod    = errors.New("no payment method selected")
	ErrPaymentDetails     = errors.New("mobile payment needs a phone of at least 7 digits and a reference")
	ErrSubmitInProgress   = errors.New("an order is already being submitted")
	ErrRestaurantLocation = errors.New("restaurant has no coordinates")
	// ErrQuoteUnavailable wraps every recompute failure; the previous totals
	// stay available through Last.
	ErrQuoteUnavailable = errors.New("totals unavailable")
	// ErrPaymentNotRegistered means the order exists but its payment was not
	// recorded. Retrying with the same idempotency key is safe.
	ErrPaymentNotRegistered = errors.New("order created but payment not registered")
)
