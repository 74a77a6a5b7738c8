package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/mw"
	"loan-desk-backend/internal/notification"
	"loan-desk-backend/internal/presence"
	"loan-desk-backend/internal/store"
)

// TechnicianNameHeader carries the display name of the calling technician.
const TechnicianNameHeader = "X-Technician-Name"

// NetworkStatus reports whether the shared location is reachable.
type NetworkStatus interface {
	Online() bool
}

// Deps are the services exposed over HTTP.
type Deps struct {
	Store         store.Store
	Loans         *loan.Service
	Notifications *notification.Engine
	Subscriptions *notification.Subscriptions
	Presence      *presence.Tracker
	Network       NetworkStatus
	Broker        *events.Broker
	WebPush       *webpush.Options
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store         store.Store
	loans         *loan.Service
	notifications *notification.Engine
	subscriptions *notification.Subscriptions
	presence      *presence.Tracker
	network       NetworkStatus
	broker        *events.Broker
	webpush       *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:         d.Store,
		loans:         d.Loans,
		notifications: d.Notifications,
		subscriptions: d.Subscriptions,
		presence:      d.Presence,
		network:       d.Network,
		broker:        d.Broker,
		webpush:       d.WebPush,
	}
}

// technician returns the caller identity from the session headers.
func technician(c *gin.Context) model.Technician {
	return model.Technician{
		ID:   c.GetHeader(mw.TechnicianHeader),
		Name: c.GetHeader(TechnicianNameHeader),
	}
}

// requireTechnician aborts requests that do not identify a technician.
func requireTechnician(c *gin.Context) {
	if c.GetHeader(mw.TechnicianHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, loan.Result{Reason: "technician identity is required"})
		return
	}
	c.Next()
}

// staleHeader exposes whether a read was served from the local mirror.
func staleHeader(c *gin.Context, meta store.Meta) {
	if meta.Stale {
		c.Header("X-Data-Stale", "true")
	}
	c.Header("X-Data-Source", string(meta.Source))
}

// statusOf maps an operation error to its HTTP status.
func statusOf(err error) int {
	var ve *loan.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case loan.IsNotFound(err), errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNetworkUnavailable):
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
