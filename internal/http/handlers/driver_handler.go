// README: Driver handlers: availability toggle, device position, assigned orders.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/modules/location"
	"delivery/internal/modules/order"
	"delivery/internal/types"
)

type DriverHandler struct {
	availability *location.Availability
	reporter     *location.Reporter
	source       *order.DriverSource
}

func NewDriverHandler(a *location.Availability, r *location.Reporter, src *order.DriverSource) *DriverHandler {
	return &DriverHandler{availability: a, reporter: r, source: src}
}

func (h *DriverHandler) GetAvailability(c *gin.Context) {
	available, known := h.availability.Available()
	writeJSON(c, http.StatusOK, gin.H{
		"disponible": available,
		"known":      known,
		"reporter":   h.reporter.Stats(),
	})
}

type availabilityReq struct {
	Disponible *bool `json:"disponible"`
}

// SetAvailability sets the flag when the body carries "disponible",
// otherwise toggles it.
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	ctx := c.Request.Context()
	var (
		now bool
		err error
	)
	if req.Disponible != nil {
		now, err = h.availability.Set(ctx, *req.Disponible)
	} else {
		now, err = h.availability.Toggle(ctx)
	}
	if err != nil {
		_ = c.Error(err)
		writeJSON(c, statusOf(err), gin.H{"error": err.Error(), "disponible": now})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"disponible": now})
}

type positionReq struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	AccuracyM float64 `json:"accuracy_m"`
}

func (h *DriverHandler) PutPosition(c *gin.Context) {
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	fix := location.Fix{Position: types.Point{Lat: req.Lat, Lng: req.Lng}, AccuracyM: req.AccuracyM}
	if err := h.reporter.Record(c.Request.Context(), fix); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) Orders(c *gin.Context) {
	if c.Query("refresh") == "1" {
		if err := h.source.RefreshAssigned(c.Request.Context()); err != nil {
			writeDomainError(c, err)
			return
		}
	}
	writeJSON(c, http.StatusOK, h.source.Assigned())
}
