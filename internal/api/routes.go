package api

import "github.com/gin-gonic/gin"

// registerAdminRoutes wires the minimal admin surface. When authMW is
// non-nil every route below it requires a valid API key; auth is opt-in via
// Config.AuthEnabled.
func registerAdminRoutes(router *gin.Engine, h *AdminHandler, authMW gin.HandlerFunc, hub *Hub) {
	admin := router.Group("/admin")
	if authMW != nil {
		admin.Use(authMW)
	}
	{
		admin.POST("/start", h.handleStart)
		admin.POST("/stop", h.handleStop)
		admin.POST("/restart", h.handleRestart)
		admin.POST("/hard-reset", h.handleHardReset)
		admin.POST("/mode", h.handleSwitchMode)
		admin.POST("/strategies/reload", h.handleReloadStrategies)
		admin.GET("/activity-log", h.handleExportActivityLog)
		admin.GET("/status", h.handleStatus)
		if hub != nil {
			admin.GET("/activity-stream", hub.handleActivityStream)
		}
	}
}
