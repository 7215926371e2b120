package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/subscription-seating/internal/config"
	"github.com/iliyamo/subscription-seating/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/subscription-seating/internal/middleware" // import middleware for JWT authentication and caching
)

// Handlers bundles every handler the API mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Admission     *handler.AdmissionHandler
	Subscriptions *handler.SubscriptionHandler
	Seats         *handler.SeatHandler
}

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the full API surface.  Unauthenticated operations
// live under /v1/auth, everything else under /v1 behind JWT validation,
// the shared rate limiter and, for subscription reads, the response
// cache.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	// Token issuing endpoints for local operator accounts.
	ag := e.Group("/v1/auth")
	ag.POST("/register", h.Auth.Register)
	ag.POST("/login", h.Auth.Login)

	// Every other endpoint requires a valid access token.  The rate
	// limiter runs after authentication so per-user strategies see the
	// resolved user id.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// The admission gate: the only endpoint seat requesters call.
	v1.POST("/subscriptions/:id/entry", h.Admission.Enter)

	// Subscription administration.  The read path goes through the
	// response cache; mutations do not.  Creating subscriptions is
	// limited to operator accounts; seat requesters arriving from a
	// tenant's identity provider never hold these roles.
	v1.POST("/subscriptions", h.Subscriptions.Create, middleware.RequireRole("operator", "admin"))
	v1.GET("/subscriptions/:id", h.Subscriptions.Get, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	v1.PATCH("/subscriptions/:id", h.Subscriptions.Patch)

	// Seat administration, scoped under the owning subscription.
	v1.GET("/subscriptions/:id/seats", h.Seats.List)
	v1.POST("/subscriptions/:id/seats", h.Seats.Reserve)
	v1.GET("/subscriptions/:id/seats/:seat_id", h.Seats.Get)
	v1.POST("/subscriptions/:id/seats/:seat_id", h.Seats.Reserve)
	v1.PATCH("/subscriptions/:id/seats/:seat_id/occupant", h.Seats.PatchOccupant)
	v1.DELETE("/subscriptions/:id/seats/:seat_id", h.Seats.Delete)
}
