// README: Cart handlers: view, add, replace confirmation, remove, clear.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"delivery/internal/modules/cart"
)

type CartHandler struct {
	cart *cart.Service
}

func NewCartHandler(svc *cart.Service) *CartHandler {
	return &CartHandler{cart: svc}
}

type cartView struct {
	Items        []cart.LineItem `json:"items"`
	Count        int             `json:"count"`
	Total        decimal.Decimal `json:"total"`
	RestaurantID string          `json:"restauranteId,omitempty"`
	Pending      *cart.LineItem  `json:"pending_replace,omitempty"`
}

func (h *CartHandler) view() cartView {
	v := cartView{
		Items:        h.cart.Items(),
		Count:        h.cart.Count(),
		Total:        h.cart.Total(),
		RestaurantID: h.cart.RestaurantID(),
	}
	if p, ok := h.cart.PendingReplacement(); ok {
		v.Pending = &p
	}
	return v
}

func (h *CartHandler) Get(c *gin.Context) {
	if !h.cart.Loaded() {
		writeDomainError(c, cart.ErrNotLoaded)
		return
	}
	writeJSON(c, http.StatusOK, h.view())
}

type addItemReq struct {
	Item     cart.LineItem `json:"item"`
	Quantity *int          `json:"cantidad"`
}

func (h *CartHandler) Add(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	err := h.cart.Add(req.Item, qty)
	if errors.Is(err, cart.ErrReplaceRequired) {
		writeJSON(c, http.StatusConflict, gin.H{
			"error":            err.Error(),
			"replace_required": true,
			"cart":             h.view(),
		})
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, h.view())
}

func (h *CartHandler) ConfirmReplace(c *gin.Context) {
	if err := h.cart.ConfirmReplace(); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, h.view())
}

func (h *CartHandler) CancelReplace(c *gin.Context) {
	cancelled := h.cart.CancelReplace()
	writeJSON(c, http.StatusOK, gin.H{"cancelled": cancelled, "cart": h.view()})
}

// Remove deletes one line. Extras are passed as ?extras=3,7.
func (h *CartHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	extras, err := parseIDs(c.Query("extras"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid extras")
		return
	}
	removed, err := h.cart.Remove(id, extras)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !removed {
		writeError(c, http.StatusNotFound, "line not in cart")
		return
	}
	writeJSON(c, http.StatusOK, h.view())
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.cart.Clear(); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, h.view())
}

func parseIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
