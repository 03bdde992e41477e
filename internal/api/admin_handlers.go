package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/validation"
)

// AdminHandler exposes the administrative surface over HTTP:
// start/stop/restart/hard-reset, switch trading mode, reload strategies,
// and export the recent activity log.
type AdminHandler struct {
	scanner  ScannerControl
	activity ActivityExporter
}

type switchModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *AdminHandler) handleStart(c *gin.Context) {
	ok, err := h.scanner.Start(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"started": false, "reason": "another session already holds leadership"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (h *AdminHandler) handleStop(c *gin.Context) {
	h.scanner.Stop()
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (h *AdminHandler) handleRestart(c *gin.Context) {
	ok, err := h.scanner.Restart(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restarted": ok})
}

func (h *AdminHandler) handleHardReset(c *gin.Context) {
	ok, err := h.scanner.HardReset(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true, "started": ok})
}

func (h *AdminHandler) handleSwitchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := validation.ValidateTradingMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := domain.TradingMode(req.Mode)

	ok, err := h.scanner.SwitchMode(c.Request.Context(), mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": string(mode), "started": ok})
}

func (h *AdminHandler) handleReloadStrategies(c *gin.Context) {
	if err := h.scanner.ReloadStrategies(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reloaded": true})
}

// handleExportActivityLog streams the activity log's JSON-lines
// serialization verbatim.
func (h *AdminHandler) handleExportActivityLog(c *gin.Context) {
	data, err := h.activity.ExportJSONLines()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/x-ndjson", data)
}

func (h *AdminHandler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"is_leader": h.scanner.IsLeader(),
		"stats":     h.scanner.Stats(),
	})
}

func (h *AdminHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
