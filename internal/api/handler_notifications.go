package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/notification"
)

// ListNotifications handles GET /api/notifications. ?unread=true restricts
// the feed to unread entries.
func (h *Handler) ListNotifications(c *gin.Context) {
	if c.Query("unread") == "true" {
		c.JSON(http.StatusOK, h.notifications.Unread(c.Request.Context()))
		return
	}
	all, meta := h.notifications.List(c.Request.Context())
	staleHeader(c, meta)
	c.JSON(http.StatusOK, all)
}

// MarkNotificationRead handles POST /api/notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if errors.Is(err, notification.ErrNotFound) {
		c.JSON(http.StatusNotFound, loan.Result{Reason: "notification not found"})
		return
	}
	c.JSON(statusOf(err), loan.ResultOf(err))
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context())
	c.JSON(statusOf(err), gin.H{"success": err == nil, "updated": n})
}
