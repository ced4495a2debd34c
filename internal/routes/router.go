package routes

import (
	"tasksync/internal/controller"
	"tasksync/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Router wires the task API. Every task route requires a JWT whose subject
// owns the :userId in the path.
func Router(h *controller.Tasks, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", h.Ready)

	api := router.Group("/users/:userId/tasks")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		api.GET("", h.ListTasks)
		api.PUT("/:taskId", h.PutTask)
		api.DELETE("/:taskId", h.DeleteTask)
	}

	return router
}
