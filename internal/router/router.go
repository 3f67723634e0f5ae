package router

import (
	"time"

	"huddle/internal/database"
	"huddle/internal/handlers"
	"huddle/internal/middleware"
	"huddle/internal/services"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {
	db := database.GetDB()

	tenantService := services.NewTenantService(db)
	customerService := services.NewCustomerService(db)
	channelService := services.NewChannelService(db)
	notificationService := services.NewNotificationService(database.GetPublisher())
	messageService := services.NewMessageService(db, channelService, notificationService)

	auth := middleware.NewAuthMiddleware(tenantService)

	tenantHandler := handlers.NewTenantHandler(tenantService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	channelHandler := handlers.NewChannelHandler(channelService)
	messageHandler := handlers.NewMessageHandler(messageService)
	wsHandler := handlers.NewWebSocketHandler(tenantService, channelService)

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 🔐 平台管理路由（JWT认证）
		admin := api.Group("/admin", auth.RequireAdmin())
		{
			admin.POST("/tenants", tenantHandler.Create)
			admin.GET("/tenants", tenantHandler.GetAll)
			admin.GET("/tenants/:id", tenantHandler.GetByID)
			admin.POST("/tenants/:id/revoke", tenantHandler.Revoke)
		}

		// 🔐 租户API（公钥+密钥认证）
		tenant := api.Group("", auth.RequireTenant())
		{
			// 客户
			customers := tenant.Group("/customers")
			{
				customers.POST("", customerHandler.Create)
				customers.GET("", customerHandler.List)
				customers.GET("/active", customerHandler.ListActive)
				customers.GET("/active-for-sender", customerHandler.ListActiveForSender)
				customers.GET("/by-email", customerHandler.GetByEmail)
				customers.GET("/:uid", customerHandler.GetByUID)
				customers.DELETE("/:uid", customerHandler.Remove)
				customers.GET("/:uid/channels", channelHandler.ListForCustomer)
				customers.GET("/:uid/messages", messageHandler.ListForCustomer)
			}

			// 会话
			channels := tenant.Group("/channels")
			{
				channels.POST("/general", channelHandler.CreateGeneral)
				channels.POST("/custom", channelHandler.CreateCustom)
				channels.GET("", channelHandler.List)
				channels.GET("/grouped", channelHandler.ListGroupedByRecipient)
				channels.GET("/:uid", channelHandler.GetByUID)
				channels.GET("/:uid/messages", messageHandler.ListForChannel)
			}

			// 消息
			messages := tenant.Group("/messages")
			{
				messages.POST("", messageHandler.Send)
				messages.POST("/direct", messageHandler.SendDirect)
				messages.GET("/between", messageHandler.ListBetween)
			}
		}
	}

	// WebSocket事件推送（凭证走查询参数）
	router.GET("/ws/events", wsHandler.Events)
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "Huddle",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
