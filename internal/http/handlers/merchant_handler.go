// README: Merchant dashboard handler.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delivery/internal/backend"
	"delivery/internal/modules/order"
)

type OrderLister interface {
	ListOrders(ctx context.Context) ([]backend.Order, error)
}

type MerchantHandler struct {
	orders OrderLister
	now    func() time.Time
}

func NewMerchantHandler(orders OrderLister) *MerchantHandler {
	return &MerchantHandler{orders: orders, now: time.Now}
}

func (h *MerchantHandler) Dashboard(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, order.BuildDashboard(orders, h.now()))
}
