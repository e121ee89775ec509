package handlers

import (
	"github.com/gin-gonic/gin"

	"bodylog-backend/internal/config"
	"bodylog-backend/internal/middleware"
)

func NewRouter(cfg *config.Config, bodyLog *BodyLogHandler, sessions *SessionHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	bl := api.Group("/body-log")
	bl.GET("/grid", bodyLog.GetGrid)
	bl.POST("/captures", bodyLog.CreateCapture)
	bl.POST("/images/:image_id/load-status", bodyLog.UpdateLoadStatus)
	bl.POST("/images/:image_id/analyze", bodyLog.Analyze)
	bl.POST("/display-urls/renew", bodyLog.RenewDisplayURLs)
	bl.GET("/notices", bodyLog.ListNotices)
	bl.DELETE("/notices/:notice_id", bodyLog.DismissNotice)

	api.DELETE("/session", sessions.Logout)

	return router
}
