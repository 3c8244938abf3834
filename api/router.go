// api/router.go
package api

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pulsar-base/pulsar-backend/api/handlers"
	"github.com/pulsar-base/pulsar-backend/api/middleware"
	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/permsync"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(db *sql.DB, cfg *config.Config, worker *permsync.Worker) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	// Setting up a rate-limiter
	ratelimiter := middleware.NewRateLimiter()
	router.Use(middleware.RateLimitMiddleware(ratelimiter))
	// It should run after basic middleware like Logger/Recovery
	// but before the routing happens, so it wraps the handlers.
	router.Use(middleware.ErrorHandler())
	router.Use(cors.Default())

	// Initialize Handlers
	tableHandler := handlers.NewTableHandler(db, cfg)
	recordHandler := handlers.NewRecordHandler(db, cfg)
	webhookHandler := handlers.NewWebhookHandler(worker, cfg)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })
	// Authenticated by its HMAC signature, not a JWT.
	router.GET("/tables/permissions-webhook", webhookHandler.TriggerSync)

	// --- Protected Routes ---
	tableRoutes := router.Group("/tables")
	tableRoutes.Use(middleware.AuthMiddleware(cfg))
	{
		tableRoutes.GET("/list", tableHandler.ListTables)
		tableRoutes.POST("/create", tableHandler.CreateTable)
		tableRoutes.PATCH("/update/:name", tableHandler.UpdateTable)
		tableRoutes.DELETE("/delete/:name", tableHandler.DeleteTable)

		tableRoutes.GET("/:name/row", recordHandler.ListRows)
		tableRoutes.POST("/:name/create", recordHandler.CreateRow)
		tableRoutes.PATCH("/:name/update", recordHandler.UpdateRow)
		tableRoutes.DELETE("/:name/delete", recordHandler.DeleteRow)
	}

	return router
}
