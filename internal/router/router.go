package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Router struct {
	cartController      *controller.CartController
	orderController     *controller.OrderController
	promotionController *controller.PromotionController
	inventoryController *controller.InventoryController
	authMiddleware      *middleware.AuthMiddleware
	config              *config.Config
}

func NewRouter(
	cartController *controller.CartController,
	orderController *controller.OrderController,
	promotionController *controller.PromotionController,
	inventoryController *controller.InventoryController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		cartController:      cartController,
		orderController:     orderController,
		promotionController: promotionController,
		inventoryController: inventoryController,
		authMiddleware:      authMiddleware,
		config:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	if r.config.Tracing.Enabled {
		router.Use(otelgin.Middleware(r.config.Tracing.ServiceName))
	}
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))
	if r.config.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Storefront API is running",
		})
	})

	if r.config.Metrics.Enabled {
		router.GET(r.config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	auth := r.authMiddleware.Authenticate()
	admin := r.authMiddleware.RequireRole(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		cart := v1.Group("/cart", auth)
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/lines", r.cartController.AddLine)
			cart.PUT("/lines/:id", r.cartController.UpdateLine)
			cart.DELETE("/lines/:id", r.cartController.RemoveLine)
		}

		orders := v1.Group("/orders", auth)
		{
			orders.POST("", r.orderController.CreateOrder)
			orders.POST("/checkout", r.orderController.Checkout)
			orders.GET("", r.orderController.GetOrders)
			orders.GET("/:id", r.orderController.GetOrderByID)
			orders.POST("/:id/cancel", r.orderController.CancelOrder)
			orders.PUT("/:id/status", admin, r.orderController.UpdateOrderStatus)
		}

		promotions := v1.Group("/promotions")
		{
			promotions.GET("/mine", auth, r.promotionController.ListMine)
			promotions.GET("/:id", r.promotionController.GetPromotion)
			promotions.POST("/:id/claim", auth, r.promotionController.Claim)
		}

		inventory := v1.Group("/inventory")
		{
			inventory.GET("/branches/:branch_id", r.inventoryController.ListByBranch)
			inventory.GET("/branches/:branch_id/product-types/:product_type_id", r.inventoryController.GetRecord)
			inventory.POST("", auth, admin, r.inventoryController.Stock)
			inventory.POST("/adjust", auth, admin, r.inventoryController.Adjust)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, Idempotency-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
