package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"loan-desk-backend/internal/mw"
)

// RouterOptions tunes the middleware of NewRouter.
type RouterOptions struct {
	RateLimitPerSec float64
	CacheTTL        time.Duration
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
}

// NewRouter creates and configures a new Gin router. The response cache is
// flushed on every broker event until ctx is done.
func NewRouter(ctx context.Context, d Deps, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handler := NewHandler(d)

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Second
	}
	burst := int(opts.RateLimitPerSec * 2)
	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), burst, mw.ClientKey)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	if d.Broker != nil {
		go mw.FlushOnUpdate(ctx, d.Broker, cacheStore)
	}

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/status", handler.GetStatus)
		api.GET("/events", handler.StreamEvents)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	limited := api.Group("")
	limited.Use(rateLimiter)
	{
		limited.GET("/subscriptions", handler.GetSubscription)
		limited.PUT("/subscriptions", handler.PutSubscription)
		limited.DELETE("/subscriptions", handler.DeleteSubscription)

		limited.GET("/technicians/online", handler.ListOnlineTechnicians)
		limited.POST("/technicians/:id/heartbeat", handler.Heartbeat)
		limited.POST("/technicians/:id/logout", handler.Logout)
	}

	cached := limited.Group("")
	cached.Use(caching)
	{
		cached.GET("/loans", handler.ListLoans)
		cached.GET("/loans/history", handler.GetHistory)
		cached.GET("/loans/statistics", handler.GetStatistics)
		cached.GET("/loans/settings", handler.GetSettings)
		cached.GET("/loans/:id", handler.GetLoan)
		cached.GET("/computers", handler.ListComputers)
		cached.GET("/notifications", handler.ListNotifications)
		cached.GET("/users", handler.ListUsers)
		cached.GET("/accessories", handler.ListAccessories)
		cached.GET("/accessories/statistics", handler.GetAccessoryStatistics)

		cached.POST("/notifications/read-all", handler.MarkAllNotificationsRead)
		cached.POST("/notifications/:id/read", handler.MarkNotificationRead)

		write := cached.Group("")
		write.Use(requireTechnician)
		write.POST("/loans", handler.CreateLoan)
		write.POST("/loans/:id/activate", handler.ActivateLoan)
		write.POST("/loans/:id/extend", handler.ExtendLoan)
		write.POST("/loans/:id/return", handler.ReturnLoan)
		write.POST("/loans/:id/cancel", handler.CancelLoan)
		write.PUT("/loans/settings", handler.PutSettings)
		write.PUT("/computers", handler.PutComputer)
		write.DELETE("/computers/:id", handler.DeleteComputer)
		write.POST("/computers/:id/maintenance", handler.AddComputerMaintenance)
		write.PUT("/accessories", handler.PutAccessory)
		write.POST("/accessories/:id/active", handler.SetAccessoryActive)
		write.DELETE("/accessories/:id", handler.DeleteAccessory)
	}

	return r
}
