package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/presence"
)

// ListOnlineTechnicians handles GET /api/technicians/online.
func (h *Handler) ListOnlineTechnicians(c *gin.Context) {
	c.JSON(http.StatusOK, h.presence.ListOnline(c.Request.Context()))
}

// Heartbeat handles POST /api/technicians/:id/heartbeat. The body is an
// optional presence snapshot.
func (h *Handler) Heartbeat(c *gin.Context) {
	var snap presence.Snapshot
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
			return
		}
	}
	if snap.Name == "" {
		snap.Name = c.GetHeader(TechnicianNameHeader)
	}
	p, err := h.presence.Heartbeat(c.Request.Context(), c.Param("id"), snap)
	if p == nil && err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: err.Error()})
		return
	}
	c.JSON(statusOf(err), p)
}

// Logout handles POST /api/technicians/:id/logout.
func (h *Handler) Logout(c *gin.Context) {
	err := h.presence.Logout(c.Request.Context(), c.Param("id"))
	c.JSON(statusOf(err), loan.ResultOf(err))
}
