package bans

import (
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBanRoutes configures the admin ban list
func SetupBanRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	admin := rg.Group("/admin/bans")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.ListBans)
		admin.POST("", controller.BanUser)
		admin.DELETE("/:email", controller.UnbanUser)
	}
}
