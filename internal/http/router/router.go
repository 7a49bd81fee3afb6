package router

import (
	"github.com/gin-gonic/gin"

	"github.com/plevandm/repairhub-backend/internal/config"
	"github.com/plevandm/repairhub-backend/internal/http/handlers"
	"github.com/plevandm/repairhub-backend/internal/http/middleware"
	"github.com/plevandm/repairhub-backend/internal/service"
)

// SetupRouter собирает все маршруты сервиса.
func SetupRouter(
	cfg *config.Config,
	escrowHandler *handlers.EscrowHandler,
	notificationHandler *handlers.NotificationHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.GET("/ws", wsHandler.Handle)

	// Платежи: все маршруты требуют авторизации, мутации ограничены по частоте.
	payments := api.Group("/payments")
	payments.Use(middleware.AuthMiddleware(tokenManager))
	paymentsRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	{
		payments.GET("/escrow", escrowHandler.ListMyPayments)
		payments.GET("/escrow/:id", middleware.UUIDValidator("id"), escrowHandler.GetPayment)
		payments.GET("/orders/:orderId", middleware.UUIDValidator("orderId"), escrowHandler.ListOrderPayments)
		payments.GET("/orders/:orderId/active", middleware.UUIDValidator("orderId"), escrowHandler.GetActiveOrderPayment)

		payments.POST("/escrow", paymentsRateLimit, escrowHandler.CreateEscrow)
		payments.POST("/escrow/:id/confirm-payment", paymentsRateLimit, middleware.UUIDValidator("id"), escrowHandler.ConfirmPayment)
		payments.POST("/escrow/:id/confirm-work", paymentsRateLimit, middleware.UUIDValidator("id"), escrowHandler.ConfirmWork)
		payments.POST("/escrow/:id/approve", paymentsRateLimit, middleware.UUIDValidator("id"), escrowHandler.ApproveWork)
		payments.POST("/escrow/:id/dispute", paymentsRateLimit, middleware.UUIDValidator("id"), escrowHandler.OpenDispute)
		payments.POST("/escrow/:id/cancel", paymentsRateLimit, middleware.UUIDValidator("id"), escrowHandler.CancelEscrow)

		// Разрешение споров — только арбитр платформы.
		payments.POST("/escrow/:id/resolve",
			middleware.RequireRole(middleware.RoleAdmin),
			middleware.UUIDValidator("id"),
			escrowHandler.ResolveDispute,
		)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware(tokenManager))
	{
		notifications.GET("", notificationHandler.ListNotifications)
		notifications.GET("/unread-count", notificationHandler.CountUnread)
		notifications.POST("/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		notifications.POST("/read-all", notificationHandler.MarkAllAsRead)
	}

	return r
}
