// Package router registers the console's local HTTP API on echo.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-live/internal/config"
	"github.com/iliyamo/storefront-live/internal/handler"
	"github.com/iliyamo/storefront-live/internal/middleware"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Options carries what the route middleware needs.
type Options struct {
	JWTSecret string
	Token     session.TokenSource // accepted as-is when JWTSecret is empty
	Redis     *redis.Client       // nil disables rate limiting and caching
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterConsole registers the authenticated /v1 API.
func RegisterConsole(e *echo.Echo, h *handler.ConsoleHandler, opts Options) {
	g := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret, opts.Token))
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleModerator)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("/state", h.State)
	g.GET("/notifications", h.Notifications)

	// ---- Orders ----
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.GET("/orders/:id/transitions", h.OrderTransitions)
	g.PATCH("/orders/:id/status", h.ChangeOrderStatus,
		middleware.RequireRole(model.RoleAdmin, model.RoleModerator, model.RoleDelivery), limit)

	// ---- Users ----
	g.GET("/users", h.ListUsers, staff)
	g.POST("/users", h.CreateUser, admin, limit)
	g.PATCH("/users/:id/role", h.ChangeUserRole, admin, limit)
	g.PATCH("/users/:id/status", h.ChangeUserStatus, admin, limit)
	g.DELETE("/users/:id", h.DeleteUser, admin, limit)

	// ---- Messages ----
	g.GET("/messages", h.ListMessages)
	g.POST("/messages", h.SendMessage, limit)

	// ---- Products ----
	g.GET("/products", h.ListProducts)
	g.GET("/products/discounts", h.ListDiscounts)
	g.GET("/products/stock", h.ListStock)
	g.POST("/products", h.CreateProduct, admin, limit)
	g.PUT("/products/:id", h.UpdateProduct, admin, limit)
	g.DELETE("/products/:id", h.DeleteProduct, admin, limit)
	g.POST("/products/:id/like", h.ToggleLike, limit)

	// ---- Lookups ----
	lookup := g.Group("/lookup", middleware.NewRedisCache(opts.Cache, opts.Redis))
	lookup.GET("/cities", h.Cities)
	lookup.GET("/cities/:city/streets", h.Streets)
}
