package sso

import "github.com/gin-gonic/gin"

// Router handles the handoff route
type Router struct {
	controller *Controller
}

func NewRouter(controller *Controller) *Router {
	return &Router{controller: controller}
}

// SetupRoutes registers the handoff route
func (r *Router) SetupRoutes(rg *gin.RouterGroup) {
	sso := rg.Group("/auth/sso")
	{
		sso.POST("/handoff", r.controller.Handoff)
	}
}
