package transport

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ds124wfegd/ewm/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency /health reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

func InitRoutes(
	eventHandler *EventHandler,
	userHandler *UserHandler,
	adminHandler *AdminHandler,
	compilationHandler *CompilationHandler,
	checks map[string]HealthChecker,
	requestTimeout int,
) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(requestTimeout))

	// Public API
	events := router.Group("/events")
	{
		events.GET("", eventHandler.SearchEvents)
		events.GET("/top", eventHandler.TopEvents)
		events.GET("/:id", eventHandler.GetEvent)
	}

	categories := router.Group("/categories")
	{
		categories.GET("", eventHandler.GetCategories)
		categories.GET("/:catId", eventHandler.GetCategory)
	}

	compilations := router.Group("/compilations")
	{
		compilations.GET("", compilationHandler.GetCompilations)
		compilations.GET("/:compId", compilationHandler.GetCompilation)
	}

	router.GET("/stats", eventHandler.GetStats)

	// Private API
	users := router.Group("/users/:userId")
	{
		users.POST("/events", userHandler.CreateEvent)
		users.GET("/events", userHandler.GetEvents)
		users.GET("/events/:eventId", userHandler.GetEvent)
		users.PATCH("/events/:eventId", userHandler.UpdateEvent)

		users.GET("/events/:eventId/requests", userHandler.GetEventRequests)
		users.PATCH("/events/:eventId/requests", userHandler.UpdateEventRequests)

		users.PUT("/events/:eventId/likes", userHandler.LikeEvent)
		users.DELETE("/events/:eventId/likes", userHandler.UnlikeEvent)

		users.GET("/requests", userHandler.GetRequests)
		users.POST("/requests", userHandler.CreateRequest)
		users.PATCH("/requests/:requestId/cancel", userHandler.CancelRequest)

		users.PUT("/locations/:locationId/likes", userHandler.LikeLocation)
		users.DELETE("/locations/:locationId/likes", userHandler.UnlikeLocation)
		users.GET("/locations/top", userHandler.TopLocations)
	}

	// Admin API
	admin := router.Group("/admin")
	{
		admin.GET("/events", adminHandler.SearchEvents)
		admin.PATCH("/events/:eventId", adminHandler.UpdateEvent)

		admin.POST("/users", adminHandler.RegisterUser)
		admin.GET("/users", adminHandler.GetUsers)
		admin.DELETE("/users/:userId", adminHandler.DeleteUser)

		admin.POST("/categories", adminHandler.CreateCategory)
		admin.PATCH("/categories/:catId", adminHandler.UpdateCategory)
		admin.DELETE("/categories/:catId", adminHandler.DeleteCategory)

		admin.POST("/compilations", compilationHandler.CreateCompilation)
		admin.PATCH("/compilations/:compId", compilationHandler.UpdateCompilation)
		admin.DELETE("/compilations/:compId", compilationHandler.DeleteCompilation)

		admin.GET("/queue", adminHandler.GetQueue)
		admin.POST("/queue/dlq/:taskId/requeue", adminHandler.RequeueTask)
		admin.DELETE("/queue/dlq/:taskId", adminHandler.DeleteTask)
	}

	// Health check
	router.GET("/health", health(checks))

	return router
}

// health answers 503 and names the failing components when any check fails.
func health(checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		components := make(map[string]string, len(names))
		code, status := http.StatusOK, "ok"
		for _, name := range names {
			if err := checks[name].HealthCheck(c.Request.Context()); err != nil {
				components[name] = err.Error()
				code, status = http.StatusServiceUnavailable, "unavailable"
				continue
			}
			components[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":     status,
			"components": components,
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}
}
