package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/store"
)

// keepAliveInterval spaces SSE comments that keep idle proxies from closing
// the stream.
const keepAliveInterval = 30 * time.Second

type statusResponse struct {
	Online     bool      `json:"online"`
	DataSource string    `json:"dataSource"`
	Stale      bool      `json:"stale"`
	Time       time.Time `json:"time"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	online := true
	if h.network != nil {
		online = h.network.Online()
	}
	_, meta := h.store.Read(c.Request.Context(), store.KeyLoans)
	c.JSON(http.StatusOK, statusResponse{
		Online:     online,
		DataSource: string(meta.Source),
		Stale:      meta.Stale,
		Time:       time.Now().UTC(),
	})
}

// StreamEvents handles GET /api/events as a server-sent event stream of
// network-status-changed and data-updated events.
func (h *Handler) StreamEvents(c *gin.Context) {
	ch, unsubscribe := h.broker.Subscribe(32)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(evt.EventName(), evt)
			c.Writer.Flush()
		}
	}
}
