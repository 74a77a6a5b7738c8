package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/model"
)

type accessoryResponse struct {
	loan.Result
	Accessory *model.Accessory `json:"accessory,omitempty"`
}

// ListAccessories handles GET /api/accessories.
func (h *Handler) ListAccessories(c *gin.Context) {
	accessories, meta := h.loans.Accessories(c.Request.Context())
	staleHeader(c, meta)
	c.JSON(http.StatusOK, accessories)
}

// GetAccessoryStatistics handles GET /api/accessories/statistics.
func (h *Handler) GetAccessoryStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.loans.AccessoryStatistics(c.Request.Context()))
}

// PutAccessory handles PUT /api/accessories. An accessory without id is created.
func (h *Handler) PutAccessory(c *gin.Context) {
	var req model.Accessory
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	saved, err := h.loans.SaveAccessory(c.Request.Context(), technician(c), req)
	c.JSON(statusOf(err), accessoryResponse{Result: loan.ResultOf(err), Accessory: saved})
}

// SetAccessoryActive handles POST /api/accessories/:id/active.
func (h *Handler) SetAccessoryActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "active is required"})
		return
	}
	saved, err := h.loans.SetAccessoryActive(c.Request.Context(), technician(c), c.Param("id"), *req.Active)
	c.JSON(statusOf(err), accessoryResponse{Result: loan.ResultOf(err), Accessory: saved})
}

// DeleteAccessory handles DELETE /api/accessories/:id.
func (h *Handler) DeleteAccessory(c *gin.Context) {
	err := h.loans.DeleteAccessory(c.Request.Context(), technician(c), c.Param("id"))
	c.JSON(statusOf(err), loan.ResultOf(err))
}
