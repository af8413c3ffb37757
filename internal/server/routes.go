package server

import (
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/handlers"
)

type routeHandlers struct {
	health        *handlers.HealthHandler
	auth          *handlers.AuthHandler
	profile       *handlers.ProfileHandler
	budget        *handlers.BudgetHandler
	products      *handlers.ProductHandler
	cart          *handlers.CartHandler
	stats         *handlers.StatsHandler
	ai            *handlers.AIHandler
	notifications *handlers.NotificationHandler
	admin         *handlers.AdminHandler
}

type routeMiddleware struct {
	auth          echo.MiddlewareFunc
	admin         echo.MiddlewareFunc
	authRateLimit echo.MiddlewareFunc
	aiRateLimit   echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, h routeHandlers, mw routeMiddleware) {
	e.GET("/health", h.health.Health)

	api := e.Group("/api/v1")
	authGroup := api.Group("/auth", mw.authRateLimit)

	authGroup.POST("/register", h.auth.Register)
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)
	authGroup.POST("/logout", h.auth.Logout)
	authGroup.GET("/me", h.auth.Me, mw.auth)

	profile := api.Group("/profile", mw.auth)
	profile.GET("", h.profile.Get)
	profile.PUT("", h.profile.Update)
	profile.POST("/onboarding", h.profile.Onboarding)

	budget := api.Group("/budget", mw.auth)
	budget.GET("", h.budget.Get)
	budget.PUT("", h.budget.Set)
	budget.POST("/spend", h.budget.Spend)
	budget.DELETE("", h.budget.Reset)

	products := api.Group("/products", mw.auth)
	products.GET("", h.products.List)
	products.GET("/categories", h.products.Categories)
	products.GET("/:id", h.products.Get)
	products.GET("/:id/recommendations", h.products.Recommendations)

	cart := api.Group("/cart", mw.auth)
	cart.GET("", h.cart.List)
	cart.DELETE("", h.cart.Clear)
	cart.POST("/items", h.cart.AddItem)
	cart.PATCH("/items/:productId", h.cart.UpdateItem)
	cart.DELETE("/items/:productId", h.cart.RemoveItem)
	cart.POST("/checkout", h.cart.Checkout)
	cart.GET("/export/csv", h.cart.ExportCSV)

	stats := api.Group("/stats", mw.auth)
	stats.GET("/overview", h.stats.Overview)
	stats.GET("/spending-by-category", h.stats.SpendingByCategory)

	notifications := api.Group("/notifications", mw.auth)
	notifications.GET("/stream", h.notifications.Stream)

	admin := api.Group("/admin", mw.auth, mw.admin)
	admin.GET("/users", h.admin.ListUsers)
	admin.GET("/ai-requests", h.admin.ListAIRequests)
	admin.GET("/usage", h.admin.Usage)
	admin.POST("/catalog", h.admin.UploadCatalog)

	aiGroup := api.Group("/ai", mw.auth, mw.aiRateLimit)
	aiGroup.POST("/chat", h.ai.Chat)
	aiGroup.GET("/history", h.ai.History)
	aiGroup.DELETE("/history", h.ai.ClearHistory)
	aiGroup.POST("/onboarding", h.ai.Onboarding)
	aiGroup.POST("/suggest", h.ai.Suggest)
}
