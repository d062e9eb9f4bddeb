// Package api exposes the lineup client over HTTP for the optimizer pages.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup-client/internal/api/handlers"
	"github.com/stitts-dev/dfs-lineup-client/internal/api/websocket"
	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
	"github.com/stitts-dev/dfs-lineup-client/internal/feeds"
	"github.com/stitts-dev/dfs-lineup-client/internal/session"
	"github.com/stitts-dev/dfs-lineup-client/pkg/config"
)

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, manager *session.Manager, feedService *feeds.Service, store *builds.Store, cfg *config.Config) {
	poolHandler := handlers.NewPoolHandler(feedService)
	sessionHandler := handlers.NewSessionHandler(manager, feedService, cfg)
	buildHandler := handlers.NewBuildHandler(store)

	// Pool endpoints
	group.GET("/sports", poolHandler.GetSports)
	group.GET("/sports/:sport/sites/:site/pool", poolHandler.GetPool)

	// Session endpoints
	group.POST("/sessions", sessionHandler.CreateSession)
	group.GET("/sessions/:id", sessionHandler.GetSession)
	group.DELETE("/sessions/:id", sessionHandler.CloseSession)
	group.PUT("/sessions/:id/constraints", sessionHandler.UpdateConstraints)
	group.POST("/sessions/:id/optimize", sessionHandler.Optimize)
	group.POST("/sessions/:id/cancel", sessionHandler.CancelOptimize)
	group.GET("/sessions/:id/lineups", sessionHandler.GetLineups)
	group.GET("/sessions/:id/export", sessionHandler.ExportLineups)

	// Build endpoints
	group.GET("/sports/:sport/sites/:site/builds", buildHandler.ListBuilds)
	group.POST("/sports/:sport/sites/:site/builds", buildHandler.SaveBuild)
	group.GET("/builds/:id", buildHandler.GetBuild)
	group.PUT("/builds/:id", buildHandler.RenameBuild)
	group.DELETE("/builds/:id", buildHandler.DeleteBuild)
}

// SetupWebSocket registers the progress push endpoint at the root level
func SetupWebSocket(router *gin.Engine, hub *websocket.Hub) {
	router.GET("/ws/sessions/:id", hub.HandleWebSocket)
}
