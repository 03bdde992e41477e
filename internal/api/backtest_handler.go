package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/backtest"
	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/validation"
	btrun "github.com/ajitpratap0/cryptofunk/pkg/backtest"
)

// BacktestHandler handles HTTP requests for backtesting.
type BacktestHandler struct {
	jobManager *backtest.JobManager
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(db *pgxpool.Pool) *BacktestHandler {
	return &BacktestHandler{jobManager: backtest.NewJobManager(db)}
}

// RunBacktestRequest defines the request body for starting a backtest.
type RunBacktestRequest struct {
	Name            string              `json:"name" binding:"required"`
	Coins           []string            `json:"coins" binding:"required,min=1"`
	Timeframe       string              `json:"timeframe" binding:"required"`
	Period          int                 `json:"period" binding:"required,gt=0"`
	EnabledSignals  []SignalSpecDTO     `json:"enabled_signals" binding:"required,min=1"`
	TargetGain      float64             `json:"target_gain" binding:"required,gt=0"`
	FutureWindow    int                 `json:"future_window" binding:"required,gt=0"`
	RequiredSignals int                 `json:"required_signals" binding:"required,min=1,max=10"`
	MaxSignals      int                 `json:"max_signals" binding:"required,min=1,max=10"`
	MinCombinedStrength float64         `json:"min_combined_strength"`
	RegimeAware     bool                `json:"regime_aware"`
	MinOccurrences      int     `json:"min_occurrences"`
	MinProfitFactor     float64 `json:"min_profit_factor"`
	MinAveragePriceMove float64 `json:"min_average_price_move"`
}

// SignalSpecDTO mirrors domain.SignalSpec for JSON binding.
type SignalSpecDTO struct {
	Type       string         `json:"type" binding:"required"`
	Value      string         `json:"value" binding:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RunBacktest records a new backtest job in pending state. It does not run
// the job; nothing in this package calls backtest.Execute.
// @Summary Start a backtest job
// @Tags Backtest
// @Accept json
// @Produce json
// @Param request body RunBacktestRequest true "Backtest configuration"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/backtest/run [post]
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req RunBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	v := validation.NewValidator()
	for i, coin := range req.Coins {
		req.Coins[i] = validation.SanitizeSymbol(coin)
		v.Symbol("coins", req.Coins[i])
	}
	if v.HasErrors() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coin symbol", "details": v.Errors().Error()})
		return
	}

	createdBy := c.GetString("user_id")
	if createdBy == "" {
		createdBy = "anonymous"
	}

	runnerConfig := btrun.Config{
		EnabledSignals:      toDomainSignals(req.EnabledSignals),
		TargetGain:          req.TargetGain,
		FutureWindow:        req.FutureWindow,
		RequiredSignals:     req.RequiredSignals,
		MaxSignals:          req.MaxSignals,
		MinCombinedStrength: req.MinCombinedStrength,
		RegimeAware:         req.RegimeAware,
	}
	if err := runnerConfig.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid runner config", "details": err.Error()})
		return
	}

	job := &backtest.BacktestJob{
		Name:         req.Name,
		Coins:        req.Coins,
		Timeframe:    req.Timeframe,
		Period:       req.Period,
		RunnerConfig: runnerConfig,
		AggConfig: btrun.AggregateConfig{
			MinOccurrences:      req.MinOccurrences,
			MinProfitFactor:     req.MinProfitFactor,
			MinAveragePriceMove: req.MinAveragePriceMove,
		},
		CreatedBy: createdBy,
	}

	ctx := c.Request.Context()
	if err := h.jobManager.CreateJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("failed to create backtest job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create backtest job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":      job.ID.String(),
		"status":  job.Status,
		"message": "Backtest job created successfully. Use GET /api/v1/backtest/:id to check status.",
	})
}

func toDomainSignals(dtos []SignalSpecDTO) []domain.SignalSpec {
	out := make([]domain.SignalSpec, len(dtos))
	for i, d := range dtos {
		out[i] = domain.SignalSpec{Type: domain.IndicatorKind(d.Type), Value: d.Value, Parameters: d.Parameters}
	}
	return out
}

// GetBacktest retrieves a backtest job by ID.
// @Summary Get backtest status and results
// @Tags Backtest
// @Produce json
// @Param id path string true "Backtest Job ID"
// @Success 200 {object} backtest.BacktestJob
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/backtest/{id} [get]
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	idStr := c.Param("id")
	jobID, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format", "details": "Expected UUID format"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobManager.GetJob(ctx, jobID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", idStr).Msg("backtest job not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest job not found", "job_id": idStr, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListBacktests retrieves a paginated list of backtest jobs.
// @Summary List user's backtests
// @Tags Backtest
// @Produce json
// @Param limit query int false "Number of results per page" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/backtest [get]
func (h *BacktestHandler) ListBacktests(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	offsetStr := c.DefaultQuery("offset", "0")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter", "details": "Limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter", "details": "Offset must be >= 0"})
		return
	}

	createdBy := c.GetString("user_id")
	if createdBy == "" {
		createdBy = "anonymous"
	}

	ctx := c.Request.Context()
	jobs, total, err := h.jobManager.ListJobs(ctx, createdBy, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list backtest jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list backtest jobs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backtests": jobs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
		"has_more":  offset+len(jobs) < total,
	})
}

// DeleteBacktest deletes a backtest job.
// @Summary Delete a backtest job
// @Tags Backtest
// @Param id path string true "Backtest Job ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/backtest/{id} [delete]
func (h *BacktestHandler) DeleteBacktest(c *gin.Context) {
	idStr := c.Param("id")
	jobID, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format", "details": "Expected UUID format"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobManager.GetJob(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest job not found", "job_id": idStr, "details": err.Error()})
		return
	}

	createdBy := c.GetString("user_id")
	if createdBy == "" {
		createdBy = "anonymous"
	}
	if job.CreatedBy != createdBy {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to delete this backtest job"})
		return
	}

	if err := h.jobManager.DeleteJob(ctx, jobID); err != nil {
		log.Error().Err(err).Str("job_id", idStr).Msg("failed to delete backtest job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete backtest job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backtest job deleted successfully", "job_id": idStr})
}

// CancelBacktest cancels a running backtest job.
// @Summary Cancel a running backtest job
// @Tags Backtest
// @Param id path string true "Backtest Job ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/backtest/{id}/cancel [post]
func (h *BacktestHandler) CancelBacktest(c *gin.Context) {
	idStr := c.Param("id")
	jobID, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format", "details": "Expected UUID format"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobManager.GetJob(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest job not found", "job_id": idStr, "details": err.Error()})
		return
	}

	if job.Status != backtest.JobStatusPending && job.Status != backtest.JobStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot cancel backtest job", "details": "Job is not in pending or running state", "status": job.Status})
		return
	}

	if err := h.jobManager.UpdateJobStatus(ctx, jobID, backtest.JobStatusCancelled, "Cancelled by user"); err != nil {
		log.Error().Err(err).Str("job_id", idStr).Msg("failed to cancel backtest job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel backtest job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backtest job cancelled successfully", "job_id": idStr, "status": backtest.JobStatusCancelled})
}

// RegisterRoutes registers all backtest-related routes.
func (h *BacktestHandler) RegisterRoutes(router *gin.RouterGroup) {
	grp := router.Group("/backtest")
	{
		grp.POST("/run", h.RunBacktest)
		grp.GET("", h.ListBacktests)
		grp.GET("/:id", h.GetBacktest)
		grp.DELETE("/:id", h.DeleteBacktest)
		grp.POST("/:id/cancel", h.CancelBacktest)
	}
}

// RegisterRoutesWithRateLimiter registers backtest routes with rate limiting.
func (h *BacktestHandler) RegisterRoutesWithRateLimiter(router *gin.RouterGroup, readMiddleware, writeMiddleware gin.HandlerFunc) {
	applyRead := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		if readMiddleware != nil {
			return append([]gin.HandlerFunc{readMiddleware}, handlers...)
		}
		return handlers
	}
	applyWrite := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		if writeMiddleware != nil {
			return append([]gin.HandlerFunc{writeMiddleware}, handlers...)
		}
		return handlers
	}

	grp := router.Group("/backtest")
	{
		grp.GET("", applyRead(h.ListBacktests)...)
		grp.GET("/:id", applyRead(h.GetBacktest)...)
		grp.POST("/run", applyWrite(h.RunBacktest)...)
		grp.DELETE("/:id", applyWrite(h.DeleteBacktest)...)
		grp.POST("/:id/cancel", applyWrite(h.CancelBacktest)...)
	}
}
