package slots

import (
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSlotRoutes configures the public listing and the admin slot tools
func SetupSlotRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	rg.GET("/slots", controller.GetAvailableSlots)

	admin := rg.Group("/admin/slots")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.ListSlots)
		admin.POST("", controller.CreateSlot)
		admin.DELETE("", controller.DeleteSlotsInRange)
		admin.GET("/inventory", controller.GetInventory)
		admin.POST("/generate", controller.GenerateSlots)
		admin.POST("/purge", controller.PurgeSlots)
		admin.DELETE("/:id", controller.DeleteSlot)
		admin.PUT("/:id/location", controller.UpdateSlotLocation)
	}
}
