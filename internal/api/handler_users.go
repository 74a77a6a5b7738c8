package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/roster"
)

// ListUsers handles GET /api/users with the last synchronised roster.
func (h *Handler) ListUsers(c *gin.Context) {
	doc, meta := roster.Users(c.Request.Context(), h.store)
	staleHeader(c, meta)
	c.JSON(http.StatusOK, doc)
}
