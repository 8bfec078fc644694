package bookings

import (
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuthWithConfig(cfg))
	{
		bookings.POST("", controller.CreateBooking)
		bookings.GET("/mine", controller.GetMyBookings)
		bookings.GET("/:id", controller.GetBooking)

		admin := bookings.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.PUT("/:id", controller.RescheduleBooking)
			admin.POST("/:id/complete", controller.CompleteBooking)
			admin.DELETE("/:id", controller.CancelBooking)
		}
	}

	adminBookings := rg.Group("/admin/bookings")
	adminBookings.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		adminBookings.GET("", controller.ListAllBookings)
	}
}
