package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/model"
)

// ListComputers handles GET /api/computers.
func (h *Handler) ListComputers(c *gin.Context) {
	computers, meta := h.loans.Computers(c.Request.Context())
	staleHeader(c, meta)
	c.JSON(http.StatusOK, computers)
}

type computerResponse struct {
	loan.Result
	Computer *model.Computer `json:"computer,omitempty"`
}

// PutComputer handles PUT /api/computers. A computer without id is created.
func (h *Handler) PutComputer(c *gin.Context) {
	var req model.Computer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	saved, err := h.loans.SaveComputer(c.Request.Context(), technician(c), req)
	c.JSON(statusOf(err), computerResponse{Result: loan.ResultOf(err), Computer: saved})
}

// DeleteComputer handles DELETE /api/computers/:id.
func (h *Handler) DeleteComputer(c *gin.Context) {
	err := h.loans.DeleteComputer(c.Request.Context(), technician(c), c.Param("id"))
	c.JSON(statusOf(err), loan.ResultOf(err))
}

// AddComputerMaintenance handles POST /api/computers/:id/maintenance.
func (h *Handler) AddComputerMaintenance(c *gin.Context) {
	var req loan.Maintenance
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	saved, err := h.loans.AddMaintenance(c.Request.Context(), technician(c), c.Param("id"), req)
	c.JSON(statusOf(err), computerResponse{Result: loan.ResultOf(err), Computer: saved})
}
