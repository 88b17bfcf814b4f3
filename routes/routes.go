package routes

import (
	"github.com/gin-gonic/gin"

	"banksec/controllers"
	"banksec/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine) {
	// Public routes (no authentication required)
	public := r.Group("/api")
	{
		// Authentication routes
		auth := public.Group("/auth")
		{
			auth.POST("/login", controllers.Login)
			auth.POST("/register", controllers.Register)
		}

		// Liveness stub for the file service
		public.GET("/files/status", controllers.FilesStatus)
	}

	// Protected routes (authentication required)
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/auth/refresh", controllers.RefreshToken)
		protected.GET("/profile", controllers.GetUserProfile)

		// Security events
		events := protected.Group("/events")
		{
			events.POST("", controllers.CreateSecurityEvent)
			events.GET("", controllers.ListSecurityEvents)
			events.GET("/stats", controllers.SecurityEventStats)
			events.GET("/:id", controllers.GetSecurityEvent)
			events.POST("/:id/analyze", middleware.StaffAuthMiddleware(), controllers.AnalyzeSecurityEvent)
			events.POST("/:id/resolve", middleware.StaffAuthMiddleware(), controllers.ResolveSecurityEvent)
		}

		// Access permissions
		permissions := protected.Group("/permissions")
		{
			permissions.POST("", middleware.StaffAuthMiddleware(), controllers.CreatePermission)
			permissions.GET("", controllers.ListPermissions)
			permissions.GET("/:id", controllers.GetPermission)
			permissions.DELETE("/:id", middleware.StaffAuthMiddleware(), controllers.RevokePermission)
			permissions.POST("/check", controllers.CheckPermission)
			permissions.POST("/verify", controllers.VerifyPermission)
		}

		// Files and audit logs
		files := protected.Group("/files")
		{
			files.POST("", controllers.UploadFile)
			files.GET("", controllers.ListFiles)
			files.POST("/search", controllers.SearchFiles)
			files.GET("/:id", controllers.GetFile)
			files.GET("/:id/download", controllers.DownloadFile)
			files.PUT("/:id", controllers.UpdateFile)
			files.DELETE("/:id", controllers.DeleteFile)
		}

		logs := protected.Group("/access-logs")
		{
			logs.GET("", controllers.ListFileAccessLogs)
			logs.GET("/stats", controllers.FileAccessLogStats)
		}

		// AI request history
		aiRequests := protected.Group("/ai-requests")
		{
			aiRequests.GET("", controllers.ListAIRequests)
			aiRequests.GET("/:id", controllers.GetAIRequest)
		}

		// Admin routes
		admin := protected.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/dashboard", controllers.AdminDashboard)
			admin.POST("/permissions/expire", controllers.ExpirePermissions)
		}
	}
}
