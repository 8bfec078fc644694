// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"tutorbook/internal/auth"
	"tutorbook/internal/bans"
	"tutorbook/internal/bookings"
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/database"
	"tutorbook/internal/slots"
	"tutorbook/internal/sso"
	"tutorbook/pkg/atomicstore"

	"github.com/gin-gonic/gin"
)

const serviceName = "tutorbook-backend"

// Dependencies are the components built at startup that handlers share
type Dependencies struct {
	Store     atomicstore.Store
	Ledger    *slots.Ledger
	Generator *slots.Generator
	Bookings  bookings.Service
	Bans      bans.Service
	Guard     *sso.NonceGuard
	Issuer    *auth.TokenIssuer
}

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	deps   Dependencies
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, deps Dependencies) *Router {
	return &Router{
		config: cfg,
		db:     db,
		deps:   deps,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		r.setupSSORoutes(api)
		r.setupSlotRoutes(api)
		r.setupBookingRoutes(api)
		r.setupBanRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		healthy := true

		if r.db != nil {
			checks["database"] = "ok"
			if err := r.db.HealthCheck(ctx); err != nil {
				checks["database"] = "unavailable"
				healthy = false
			}
		}
		if r.deps.Store != nil {
			checks["store"] = "ok"
			if err := r.deps.Store.Ping(ctx); err != nil {
				checks["store"] = "unavailable"
				healthy = false
			}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now(),
			"service":   serviceName,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupAuthRoutes configures admin sign-in and session routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authService := auth.NewService(r.deps.Issuer, r.config.Admins)
	authController := auth.NewController(authService)
	auth.NewRouter(authController, r.config).SetupRoutes(rg)
}

// setupSSORoutes configures the cross-service sign-in handoff
func (r *Router) setupSSORoutes(rg *gin.RouterGroup) {
	controller := sso.NewController(r.deps.Guard, r.deps.Issuer, r.config.SSO.RedirectPath)
	sso.NewRouter(controller).SetupRoutes(rg)
}

// setupSlotRoutes configures slot listing and admin slot tools
func (r *Router) setupSlotRoutes(rg *gin.RouterGroup) {
	controller := slots.NewController(r.deps.Ledger, r.deps.Generator)
	slots.SetupSlotRoutes(rg, controller, r.config)
}

// setupBookingRoutes configures booking routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	controller := bookings.NewController(r.deps.Bookings)
	bookings.SetupBookingRoutes(rg, controller, r.config)
}

// setupBanRoutes configures the admin ban list
func (r *Router) setupBanRoutes(rg *gin.RouterGroup) {
	bans.SetupBanRoutes(rg, bans.NewController(r.deps.Bans), r.config)
}
