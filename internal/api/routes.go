package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Kamar-Folarin/brand-sync/internal/auth"
)

// @title Brand Sync API
// @version 1.0
// @description Background sync jobs for brand, analytics and SEO data with live progress over websockets
// @contact.name API Support
// @contact.url http://github.com/Kamar-Folarin
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// SetupRouter configures the API routes
func SetupRouter(h *Handler, ws *WebSocketHandler, validator *auth.Validator, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), CORS())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if ws != nil {
		r.GET("/ws", ws.Serve)
	}

	v1 := r.Group("/api/v1", auth.Middleware(validator))
	{
		sync := v1.Group("/sync")
		{
			sync.GET("/jobs", h.ListJobs)
			sync.GET("/jobs/:id", h.GetJob)
			sync.POST("/jobs/:id/cancel", h.CancelJob)

			sync.POST("/all", h.SyncAll)
			sync.POST("/ga4", h.SyncGA4)
			sync.POST("/agency-analytics", h.SyncAgencyAnalytics)
		}
	}

	return r
}
