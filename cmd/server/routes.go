package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// brute-force protection for the credential endpoints
	authLimiter := middleware.NewRateLimiter(1, 10)

	r.GET("/health", svc.healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		api.GET("/health", svc.healthHandler.CheckHealth)
		api.GET("/login-info", svc.authHandler.LoginInfo)

		public := api.Group("", authLimiter.Middleware())
		{
			public.POST("/login", svc.authHandler.Login)
			public.POST("/register", svc.authHandler.Register)
		}

		// Authenticated users
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			protected.GET("/me", svc.authHandler.Me)

			protected.GET("/accounts", svc.accountHandler.List)
			protected.GET("/ai-reply-settings", svc.accountHandler.GetAISettings)
			protected.PUT("/ai-reply-settings", svc.accountHandler.UpdateAISettings)
			protected.POST("/ai-reply-test/:accountId", svc.accountHandler.TestReply)
			protected.GET("/items/:accountId/:itemId/knowledge-base", svc.knowledgeBase.Get)
			protected.PUT("/items/:accountId/:itemId/knowledge-base", svc.knowledgeBase.Update)

			protected.GET("/user-settings", svc.userSettings.List)
			protected.GET("/user-settings/:key", svc.userSettings.Get)
			protected.PUT("/user-settings/:key", svc.userSettings.Update)

			protected.GET("/backup/export", svc.backupHandler.Export)
			protected.POST("/backup/import", svc.backupHandler.Import)
		}

		// Admin only
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			admin.POST("/accounts", svc.accountHandler.Create)

			admin.GET("/system-settings", svc.systemSettings.List)
			admin.GET("/system-settings/:key", svc.systemSettings.Get)
			admin.PUT("/system-settings/:key", svc.systemSettings.Update)
			admin.POST("/admin/reload-cache", svc.systemSettings.ReloadCache)

			admin.POST("/test-email", svc.emailHandler.SendTest)
			admin.POST("/change-admin-password", svc.authHandler.ChangeAdminPassword)

			admin.GET("/admin/backup/list", svc.backupHandler.List)
			admin.GET("/admin/backup/download", svc.backupHandler.Download)
			admin.POST("/admin/backup/upload", svc.backupHandler.Upload)

			admin.GET("/admin/system-logs", svc.systemLogHandler.List)
			admin.GET("/admin/system-logs/modules", svc.systemLogHandler.Modules)
			admin.POST("/admin/system-logs/cleanup", svc.systemLogHandler.Cleanup)

			admin.GET("/admin/users", svc.userHandler.List)
			admin.PUT("/admin/users/:id", svc.userHandler.Update)
			admin.DELETE("/admin/users/:id", svc.userHandler.Delete)

			admin.GET("/admin/events", svc.eventHandler.Stream)
			admin.GET("/metrics", svc.metricsHandler.Metrics)
		}
	}
}
