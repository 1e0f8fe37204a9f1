package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/peterhyland0/adaptive-learning-backend/internal/handlers"
)

type RouterConfig struct {
	AllowOrigins    []string
	ClassifyHandler *handlers.ClassifyHandler
	UploadHandler   *handlers.UploadHandler
	ModuleHandler   *handlers.ModuleHandler
	SSEHandler      *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/classify", cfg.ClassifyHandler.Classify)
		api.POST("/uploads", cfg.UploadHandler.Upload)
		api.GET("/uploads/:id/runs", cfg.ModuleHandler.GetUploadRuns)
		api.GET("/modules", cfg.ModuleHandler.ListModules)
		api.GET("/modules/:id", cfg.ModuleHandler.GetModule)
	}

	router.GET("/sse/stream", cfg.SSEHandler.SSEStream)

	return router
}

// SplitOrigins parses a comma separated origin list from the environment.
func SplitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
