// README: Checkout handlers: totals quote, payment methods and order submission.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/backend"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/checkout"
)

type AddressBook interface {
	DefaultAddress(ctx context.Context) (*backend.Address, error)
}

type Quoter interface {
	Recompute(ctx context.Context, items []cart.LineItem, addr *backend.Address) (checkout.Quote, error)
	Last() checkout.Quote
}

type OrderSubmitter interface {
	Submit(ctx context.Context, req checkout.SubmitRequest) (*checkout.Receipt, error)
}

type PaymentCatalog interface {
	ListPaymentMethods(ctx context.Context) ([]backend.PaymentMethod, error)
}

type CheckoutHandler struct {
	cart      *cart.Service
	addresses AddressBook
	quoter    Quoter
	submitter OrderSubmitter
	payments  PaymentCatalog
}

func NewCheckoutHandler(c *cart.Service, addresses AddressBook, q Quoter, s OrderSubmitter, payments PaymentCatalog) *CheckoutHandler {
	return &CheckoutHandler{cart: c, addresses: addresses, quoter: q, submitter: s, payments: payments}
}

type quoteReq struct {
	Address *backend.Address `json:"direccion"`
}

// address falls back to the user's default address. No default is not an
// error here; the calculator and submitter report ErrNoAddress.
func (h *CheckoutHandler) address(ctx context.Context, addr *backend.Address) (*backend.Address, error) {
	if addr != nil {
		return addr, nil
	}
	def, err := h.addresses.DefaultAddress(ctx)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	return def, err
}

func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req quoteReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	ctx := c.Request.Context()
	addr, err := h.address(ctx, req.Address)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	q, err := h.quoter.Recompute(ctx, h.cart.Items(), addr)
	if err != nil {
		// the previous totals stay on screen
		_ = c.Error(err)
		writeJSON(c, statusOf(err), gin.H{"error": err.Error(), "last": h.quoter.Last()})
		return
	}
	writeJSON(c, http.StatusOK, q)
}

// PaymentMethods lists the methods the backend accepts, for the picker
// shown before submitting.
func (h *CheckoutHandler) PaymentMethods(c *gin.Context) {
	methods, err := h.payments.ListPaymentMethods(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if methods == nil {
		methods = []backend.PaymentMethod{}
	}
	writeJSON(c, http.StatusOK, methods)
}

func (h *CheckoutHandler) Submit(c *gin.Context) {
	var req checkout.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := c.Request.Context()
	addr, err := h.address(ctx, req.Address)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	req.Address = addr
	receipt, err := h.submitter.Submit(ctx, req)
	if errors.Is(err, checkout.ErrPaymentNotRegistered) {
		_ = c.Error(err)
		writeJSON(c, http.StatusBadGateway, gin.H{"error": err.Error(), "receipt": receipt})
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, receipt)
}
