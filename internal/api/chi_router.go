// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/authz"
	"github.com/tomtom215/merkato/internal/middleware"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/response"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	enforcer      *authz.Enforcer
}

// NewRouter creates a router. enforcer may be nil, in which case route
// groups are guarded by role checks only.
func NewRouter(handler *Handler, mw *ChiMiddleware, enforcer *authz.Enforcer) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil, handler.ips, nil)
	}
	return &Router{handler: handler, chiMiddleware: mw, enforcer: enforcer}
}

func (router *Router) authorize(object string) func(http.Handler) http.Handler {
	if router.enforcer == nil {
		return passthrough
	}
	return router.enforcer.Authorize(object)
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.CleanPath)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(middleware.Compression)
	if h.perfMon != nil {
		r.Use(h.perfMon.Middleware)
	}
	r.Use(middleware.PrometheusMetrics)
	r.Use(audit.CaptureSource(h.ips))
	r.Use(router.chiMiddleware.RateLimit())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.Health)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// API Route Groups
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(APISecurityHeaders)
		r.Use(router.chiMiddleware.RateLimitWrites())

		router.registerAuthRoutes(r)
		router.registerProductRoutes(r)
		router.registerOrderRoutes(r)
		router.registerDeliveryRoutes(r)
		router.registerAdminRoutes(r)
		router.registerUserRoutes(r)
	})

	// ========================
	// Realtime
	// ========================
	r.Get("/ws", h.WebSocket)

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}

// registerAuthRoutes adds /api/auth. Login and registration have the
// strictest rate limit.
func (router *Router) registerAuthRoutes(r chi.Router) {
	h := router.handler
	r.Route("/auth", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitAuth()).Post("/register", h.Register)
		r.With(router.chiMiddleware.RateLimitAuth()).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authn.Authenticate)
			r.Post("/logout", h.Logout)
			r.Post("/refresh", h.Refresh)
			r.Get("/me", h.Me)
		})
	})
}

// registerProductRoutes adds /api/products. Browsing is public; an
// optional token lets owners and admins see their inactive products.
func (router *Router) registerProductRoutes(r chi.Router) {
	h := router.handler
	r.Route("/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.authn.Optional)
			r.Get("/", h.ListProducts)
			r.Get("/featured", h.FeaturedProducts)
			r.Get("/categories", h.ProductCategories)
			r.Get("/{id}", h.GetProduct)
			r.Get("/{id}/reviews", h.ProductReviews)
		})

		// Seller catalog management
		r.Group(func(r chi.Router) {
			r.Use(h.authn.Authenticate)
			r.Use(auth.RequireRole(models.RoleSeller))
			r.Use(router.authorize(authz.ObjectProducts))

			r.Get("/mine", h.MyProducts)
			r.With(auth.RequireApproved).Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Patch("/{id}/stock", h.SetProductStock)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authn.Authenticate)
			r.Use(auth.RequireRole(models.RoleCustomer))
			r.Use(router.authorize(authz.ObjectReviews))
			r.Post("/{id}/reviews", h.AddReview)
		})
	})
}

// registerOrderRoutes adds /api/orders.
func (router *Router) registerOrderRoutes(r chi.Router) {
	h := router.handler
	r.Route("/orders", func(r chi.Router) {
		r.Get("/status-flow", h.OrderStatusFlow)

		r.Group(func(r chi.Router) {
			r.Use(h.authn.Authenticate)
			r.Use(router.authorize(authz.ObjectOrders))

			r.With(auth.RequireRole(models.RoleCustomer)).Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/tracking", h.OrderTracking)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
			r.Post("/{id}/cancel", h.CancelOrder)
		})
	})
}

// registerDeliveryRoutes adds /api/delivery for delivery agents.
func (router *Router) registerDeliveryRoutes(r chi.Router) {
	h := router.handler
	r.Route("/delivery", func(r chi.Router) {
		r.Use(h.authn.Authenticate)
		r.Use(auth.RequireRole(models.RoleDeliveryAgent))
		r.Use(router.authorize(authz.ObjectDelivery))

		r.Get("/orders", h.AssignedDeliveries)
		r.Get("/orders/available", h.AvailableDeliveries)
		r.Post("/orders/{id}/claim", h.ClaimDelivery)
		r.Patch("/orders/{id}/status", h.UpdateDeliveryStatus)
		r.Patch("/availability", h.SetAvailability)
		r.Get("/stats", h.DeliveryStats)
	})
}

// registerAdminRoutes adds /api/admin.
func (router *Router) registerAdminRoutes(r chi.Router) {
	h := router.handler
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authn.Authenticate)
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Use(router.authorize(authz.ObjectAdmin))

		// Users
		r.Get("/users", h.AdminListUsers)
		r.Get("/users/{id}", h.AdminGetUser)
		r.Patch("/users/{id}/status", h.AdminSetUserStatus)
		r.Patch("/users/{id}/approve", h.AdminApproveUser)
		r.Delete("/users/{id}", h.AdminDeleteUser)

		// Products
		r.Get("/products", h.AdminListProducts)
		r.Patch("/products/{id}/status", h.AdminSetProductStatus)
		r.Patch("/products/{id}/feature", h.AdminSetProductFeatured)
		r.Delete("/products/{id}", h.AdminDeleteProduct)

		// Orders
		r.Get("/orders", h.AdminListOrders)
		r.Patch("/orders/{id}/assign", h.AdminAssignOrder)
		r.Patch("/orders/{id}/status", h.AdminUpdateOrderStatus)

		// Communication, audit and reporting
		r.Post("/emails/bulk", h.AdminBulkEmail)
		r.Get("/audit", h.AdminAuditTrail)
		r.Get("/analytics/dashboard", h.AdminDashboard)
		r.Get("/performance", h.AdminPerformance)
	})
}

// registerUserRoutes adds /api/users: public seller profiles and the
// caller's own account, cart, wishlist and notifications.
func (router *Router) registerUserRoutes(r chi.Router) {
	h := router.handler
	r.Route("/users", func(r chi.Router) {
		r.Get("/sellers", h.ListSellers)
		r.Get("/sellers/{id}", h.GetSeller)

		r.Route("/me", func(r chi.Router) {
			r.Use(h.authn.Authenticate)

			r.Group(func(r chi.Router) {
				r.Use(router.authorize(authz.ObjectUsers))
				r.Get("/", h.GetProfile)
				r.Put("/", h.UpdateProfile)
				r.Put("/password", h.ChangePassword)
			})

			r.With(router.authorize(authz.ObjectAnalytics)).Get("/dashboard", h.MyDashboard)

			r.Route("/cart", func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleCustomer))
				r.Use(router.authorize(authz.ObjectCart))
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddToCart)
				r.Put("/items/{productId}", h.UpdateCartItem)
				r.Delete("/items/{productId}", h.RemoveCartItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleCustomer))
				r.Use(router.authorize(authz.ObjectWishlist))
				r.Get("/", h.GetWishlist)
				r.Post("/", h.AddToWishlist)
				r.Delete("/{productId}", h.RemoveFromWishlist)
				r.Post("/{productId}/move-to-cart", h.MoveWishlistItemToCart)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Use(router.authorize(authz.ObjectNotifications))
				r.Get("/", h.ListNotifications)
				r.Get("/unread-count", h.UnreadNotificationCount)
				r.Patch("/read-all", h.MarkAllNotificationsRead)
				r.Patch("/{id}/read", h.MarkNotificationRead)
			})
		})
	})
}
