package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pharmacare/pharmacy-backend/config"
	"github.com/pharmacare/pharmacy-backend/internal/app/controller"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/pharmacare/pharmacy-backend/internal/middleware"
)

type Router struct {
	authController       *controller.AuthController
	medicationController *controller.MedicationController
	cartController       *controller.CartController
	authMiddleware       *middleware.AuthMiddleware
	config               *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	medicationController *controller.MedicationController,
	cartController *controller.CartController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:       authController,
		medicationController: medicationController,
		cartController:       cartController,
		authMiddleware:       authMiddleware,
		config:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		apperrors.Success(c, http.StatusOK, "Pharmacy API is running", gin.H{
			"status":      "healthy",
			"environment": r.config.Server.Environment,
		})
	})

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
		}

		medications := api.Group("/medications")
		{
			medications.GET("", r.medicationController.ListMedications)
			medications.GET("/alerts/low-stock", r.medicationController.ListLowStock)
			medications.GET("/alerts/expiring", r.medicationController.ListExpiring)
			medications.GET("/special/featured", r.medicationController.ListFeatured)
			medications.GET("/special/on-sale", r.medicationController.ListOnSale)
			medications.GET("/:id", r.medicationController.GetMedication)
			medications.PUT("/:id/stock", r.authMiddleware.Authenticate(), r.medicationController.UpdateStock)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", r.medicationController.ListCategories)
			categories.GET("/slug/:slug", r.medicationController.GetCategoryBySlug)
			categories.GET("/:id", r.medicationController.GetCategory)
		}

		cart := api.Group("/cart")
		cart.Use(r.authMiddleware.Authenticate())
		{
			cart.GET("", r.cartController.GetCart)
			cart.GET("/count", r.cartController.GetCartCount)
			cart.POST("/add", r.cartController.AddToCart)
			cart.POST("/sync", r.cartController.SyncCart)
			cart.POST("/cleanup", r.cartController.CleanupCart)
			cart.PUT("/item/:medicationId", r.cartController.UpdateCartItem)
			cart.DELETE("/item/:medicationId", r.cartController.RemoveCartItem)
			cart.DELETE("", r.cartController.ClearCart)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
