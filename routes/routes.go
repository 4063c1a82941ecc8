package routes

import (
	"wastemap-api/handlers"
	"wastemap-api/middleware"
	"wastemap-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/login", handlers.Login)

		// Lifecycle info (great for docs/Postman)
		public.GET("/lifecycle", handlers.GetLifecycleInfo)
	}

	// ── Authenticated routes (any role) ────────────────────────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/users/profile", handlers.GetProfile)
		auth.PUT("/users/profile", handlers.UpdateProfile)
		auth.GET("/users/collectors", handlers.ListCollectors)

		// Pickup lifecycle. Authorization here is relationship-based
		// (owner, assigned collector), so the service enforces it rather
		// than a role gate on the route.
		auth.POST("/pickups", handlers.CreatePickup)
		auth.GET("/pickups", handlers.ListPickups)
		auth.GET("/pickups/my-pickups", handlers.GetMyPickups)
		auth.GET("/pickups/:id", handlers.GetPickupDetail)
		auth.PUT("/pickups/:id/status", handlers.AdvancePickup)
		auth.PUT("/pickups/:id/cancel", handlers.CancelPickup)
		auth.PUT("/pickups/:id/rate", handlers.RatePickup)
	}

	// ── Collector routes ───────────────────────────────────────────
	collector := r.Group("/api/collector")
	collector.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleCollector))
	{
		collector.GET("/pickups/available", handlers.GetAvailablePickups)
		collector.GET("/pickups/my-assignments", handlers.GetMyAssignments)
		collector.PUT("/pickups/:id/claim", handlers.ClaimPickup)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/users", handlers.AdminGetAllUsers)
		admin.PUT("/users/:id/role", handlers.AdminUpdateUserRole)
		admin.GET("/stats", handlers.AdminGetStats)
		admin.PUT("/pickups/:id/assign", handlers.AdminAssignCollector)
		admin.PUT("/pickups/:id/status", handlers.AdminOverrideStatus)
	}
}
