// README: Watcher handlers: decision state, accept/reject, journal.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"delivery/internal/modules/order"
)

type WatcherHandler struct {
	watchers map[string]*order.Watcher
}

// NewWatcherHandler indexes watchers by their role.
func NewWatcherHandler(watchers ...*order.Watcher) *WatcherHandler {
	m := make(map[string]*order.Watcher, len(watchers))
	for _, w := range watchers {
		if w != nil {
			m[w.Role()] = w
		}
	}
	return &WatcherHandler{watchers: m}
}

func (h *WatcherHandler) watcher(c *gin.Context) (*order.Watcher, bool) {
	w, ok := h.watchers[c.Param("role")]
	if !ok {
		writeError(c, http.StatusNotFound, "no watcher for role")
	}
	return w, ok
}

func (h *WatcherHandler) Get(c *gin.Context) {
	w, ok := h.watcher(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, w.Snapshot())
}

type decisionReq struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *WatcherHandler) Accept(c *gin.Context) {
	w, ok := h.watcher(c)
	if !ok {
		return
	}
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "order_id required")
		return
	}
	if err := w.Accept(c.Request.Context(), req.OrderID); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "accepted", "watcher": w.Snapshot()})
}

func (h *WatcherHandler) Reject(c *gin.Context) {
	w, ok := h.watcher(c)
	if !ok {
		return
	}
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "order_id required")
		return
	}
	if err := w.Reject(c.Request.Context(), req.OrderID); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "rejected", "watcher": w.Snapshot()})
}

func (h *WatcherHandler) Events(c *gin.Context) {
	w, ok := h.watcher(c)
	if !ok {
		return
	}
	j := w.Journal()
	if j == nil {
		writeJSON(c, http.StatusOK, []order.Event{})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}
	events, err := j.ListEvents(c.Request.Context(), w.Role(), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if events == nil {
		events = []order.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}
