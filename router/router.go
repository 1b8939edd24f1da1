package router

import (
	"net/http"
	"time"

	"github.com/douxbatter/storefront/controllers"
	"github.com/douxbatter/storefront/feed"
	"github.com/douxbatter/storefront/middlewares"
	"github.com/douxbatter/storefront/services"
	"github.com/gin-gonic/gin"
)

// Dependencies is everything the HTTP layer needs, built once in main.
type Dependencies struct {
	Orders   *services.OrderService
	Webhooks *services.WebhookService
	Sessions *services.SessionService
	Catalog  *services.CatalogService
	Slips    *services.PackingSlipRenderer
	Hub      *feed.Hub

	AllowedOrigin string
	// Secure marks the deployment as served over HTTPS: session cookies get
	// the Secure flag and responses carry HSTS.
	Secure bool
	// DisableRateLimits is for tests that fire many requests from one IP.
	DisableRateLimits bool
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(deps.Secure))
	r.Use(middlewares.CORSMiddlewares(deps.AllowedOrigin))

	orderCtrl := controllers.NewOrderController(deps.Orders)
	paymentCtrl := controllers.NewPaymentController(deps.Webhooks)
	productCtrl := controllers.NewProductController(deps.Catalog)
	authCtrl := controllers.NewAuthController(deps.Sessions, deps.Secure)
	adminOrderCtrl := controllers.NewAdminOrderController(deps.Orders, deps.Slips)
	feedCtrl := controllers.NewFeedController(deps.Hub, deps.AllowedOrigin)

	limit := func(name string, interval time.Duration, burst int) gin.HandlerFunc {
		if deps.DisableRateLimits {
			return func(c *gin.Context) { c.Next() }
		}
		return middlewares.NewRateLimiter(name, interval, burst).RateLimit()
	}
	checkoutLimit := limit("checkout", 6*time.Second, 10)
	loginLimit := limit("login", 12*time.Second, 5)
	webhookLimit := limit("webhook", 100*time.Millisecond, 50)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/products", productCtrl.ListProducts)
	r.GET("/products/:id", productCtrl.GetProduct)
	r.GET("/categories", productCtrl.ListCategories)

	r.POST("/orders", checkoutLimit, orderCtrl.CreateOrder)
	r.GET("/orders/:reference", orderCtrl.GetOrderByReference)
	r.POST("/orders/:reference/payment", checkoutLimit, orderCtrl.RetryPayment)

	webhooks := r.Group("/webhooks")
	webhooks.Use(webhookLimit, middlewares.LogWebhookRequest(), middlewares.WebhookBodyLimit(middlewares.MaxWebhookBody))
	{
		webhooks.POST("/payment", paymentCtrl.HandleWebhook)
		webhooks.POST("/ziina", paymentCtrl.HandleWebhook)
	}

	r.POST("/admin/login", loginLimit, authCtrl.Login)
	r.POST("/admin/logout", authCtrl.Logout)
	r.GET("/admin/session", authCtrl.Session)

	// ----------------------------------------------------------------
	//                      ADMIN ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AdminSessionGuard(deps.Sessions))

	admin.GET("/orders", adminOrderCtrl.ListOrders)
	admin.GET("/orders/stats", adminOrderCtrl.OrderStats)
	admin.GET("/orders/:id", adminOrderCtrl.GetOrder)
	admin.PATCH("/orders/:id", adminOrderCtrl.UpdateOrder)
	admin.DELETE("/orders/:id", adminOrderCtrl.DeleteOrder)
	admin.GET("/orders/:id/packing-slip", adminOrderCtrl.PackingSlip)

	admin.GET("/products", productCtrl.AdminListProducts)
	admin.POST("/products", productCtrl.CreateProduct)
	admin.GET("/products/:id", productCtrl.AdminGetProduct)
	admin.PUT("/products/:id", productCtrl.UpdateProduct)
	admin.DELETE("/products/:id", productCtrl.DeleteProduct)
	admin.PUT("/products/:id/images/order", productCtrl.ReorderImages)

	admin.PUT("/variants/:id", productCtrl.UpdateVariant)
	admin.DELETE("/variants/:id", productCtrl.DeleteVariant)

	admin.GET("/ws", feedCtrl.Connect)

	return r
}
