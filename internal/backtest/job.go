// Package backtest tracks asynchronous backtest runs: the admin API enqueues
// a job, Execute drives pkg/backtest's Runner and Aggregator over it, and
// the job's status/results are polled until terminal. Grounded on the
// teacher's internal/backtest job-queue scaffolding (uuid-identified
// Postgres-backed jobs with a pending/running/completed/failed/cancelled
// state machine), generalized from the teacher's generic-strategy-engine
// results shape to BacktestAggregator's Combination-ranking output (spec
// §4.3, §4.4).
package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	btrun "github.com/ajitpratap0/cryptofunk/pkg/backtest"
)

// JobStatus represents the status of a backtest job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// BacktestJob is one BacktestRunner+Aggregator invocation tracked through to completion.
type BacktestJob struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Status       JobStatus       `json:"status"`
	Coins        []string        `json:"coins"`
	Timeframe    string          `json:"timeframe"`
	Period       int             `json:"period"`
	RunnerConfig btrun.Config    `json:"runner_config"`
	AggConfig    btrun.AggregateConfig `json:"agg_config"`
	Results      *BacktestResults `json:"results,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CreatedBy    string          `json:"created_by,omitempty"`
}

// BacktestResults is the completed job's summary.
type BacktestResults struct {
	Combinations []domain.Combination `json:"combinations"`
	Discarded    int                  `json:"discarded"`
	FailedCoins  map[string]string    `json:"failed_coins,omitempty"`
	MatchCount   int                  `json:"match_count"`
}

// JobManager persists BacktestJob records.
type JobManager struct {
	db *pgxpool.Pool
	mu sync.RWMutex
}

// NewJobManager creates a new backtest job manager.
func NewJobManager(db *pgxpool.Pool) *JobManager {
	return &JobManager{db: db}
}

// CreateJob creates a new backtest job in the database.
func (m *JobManager) CreateJob(ctx context.Context, job *BacktestJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = JobStatusPending

	if err := m.validateJob(job); err != nil {
		return fmt.Errorf("invalid job configuration: %w", err)
	}

	runnerConfigJSON, err := json.Marshal(job.RunnerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal runner config: %w", err)
	}
	aggConfigJSON, err := json.Marshal(job.AggConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate config: %w", err)
	}

	const query = `
		INSERT INTO backtest_jobs (
			id, name, status, coins, timeframe, period,
			runner_config, agg_config,
			created_at, updated_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = m.db.Exec(ctx, query,
		job.ID, job.Name, job.Status, job.Coins, job.Timeframe, job.Period,
		runnerConfigJSON, aggConfigJSON,
		job.CreatedAt, job.UpdatedAt, job.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest job: %w", err)
	}

	log.Info().Str("job_id", job.ID.String()).Str("name", job.Name).Msg("created backtest job")
	return nil
}

func (m *JobManager) validateJob(job *BacktestJob) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if len(job.Coins) == 0 {
		return fmt.Errorf("at least one coin is required")
	}
	if job.Timeframe == "" {
		return fmt.Errorf("timeframe is required")
	}
	if job.Period <= 0 {
		return fmt.Errorf("period must be positive")
	}
	if err := job.RunnerConfig.Validate(); err != nil {
		return fmt.Errorf("invalid runner config: %w", err)
	}
	return nil
}

// GetJob retrieves a backtest job by ID.
func (m *JobManager) GetJob(ctx context.Context, jobID uuid.UUID) (*BacktestJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	const query = `
		SELECT id, name, status, coins, timeframe, period,
		       runner_config, agg_config, results,
		       error_message,
		       created_at, started_at, completed_at, updated_at, created_by
		FROM backtest_jobs
		WHERE id = $1
	`

	var job BacktestJob
	var runnerConfigJSON, aggConfigJSON, resultsJSON []byte

	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.Name, &job.Status, &job.Coins, &job.Timeframe, &job.Period,
		&runnerConfigJSON, &aggConfigJSON, &resultsJSON,
		&job.ErrorMessage,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.UpdatedAt, &job.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve backtest job: %w", err)
	}

	if err := json.Unmarshal(runnerConfigJSON, &job.RunnerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal runner config: %w", err)
	}
	if err := json.Unmarshal(aggConfigJSON, &job.AggConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agg config: %w", err)
	}
	if len(resultsJSON) > 0 {
		var results BacktestResults
		if err := json.Unmarshal(resultsJSON, &results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		job.Results = &results
	}

	return &job, nil
}

// ListJobs retrieves a paginated list of backtest jobs.
func (m *JobManager) ListJobs(ctx context.Context, createdBy string, limit, offset int) ([]*BacktestJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	whereClause := ""
	args := []interface{}{}
	argPos := 1
	if createdBy != "" {
		whereClause = fmt.Sprintf("WHERE created_by = $%d", argPos)
		args = append(args, createdBy)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM backtest_jobs %s", whereClause)
	var total int
	if err := m.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count backtest jobs: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, name, status, coins, timeframe, period,
		       error_message,
		       created_at, started_at, completed_at, updated_at, created_by
		FROM backtest_jobs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	rows, err := m.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query backtest jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*BacktestJob, 0)
	for rows.Next() {
		var job BacktestJob
		if err := rows.Scan(
			&job.ID, &job.Name, &job.Status, &job.Coins, &job.Timeframe, &job.Period,
			&job.ErrorMessage,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.UpdatedAt, &job.CreatedBy,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan backtest job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, total, rows.Err()
}

// UpdateJobStatus updates the status of a backtest job.
func (m *JobManager) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status JobStatus, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var startedAt, completedAt *time.Time
	switch status {
	case JobStatusRunning:
		startedAt = &now
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		completedAt = &now
	}

	const query = `
		UPDATE backtest_jobs
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    completed_at = COALESCE($3, completed_at),
		    error_message = $4,
		    updated_at = $5
		WHERE id = $6
	`
	_, err := m.db.Exec(ctx, query, status, startedAt, completedAt, errorMsg, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// SaveResults saves the backtest results to the database and marks the job
// completed.
func (m *JobManager) SaveResults(ctx context.Context, jobID uuid.UUID, results *BacktestResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	now := time.Now()
	const query = `
		UPDATE backtest_jobs
		SET results = $1,
		    status = $2,
		    completed_at = $3,
		    updated_at = $4
		WHERE id = $5
	`
	_, err = m.db.Exec(ctx, query, resultsJSON, JobStatusCompleted, now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	log.Info().
		Str("job_id", jobID.String()).
		Int("combinations", len(results.Combinations)).
		Msg("saved backtest results")
	return nil
}

// DeleteJob deletes a backtest job.
func (m *JobManager) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.db.Exec(ctx, `DELETE FROM backtest_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete backtest job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("backtest job not found")
	}

	log.Info().Str("job_id", jobID.String()).Msg("deleted backtest job")
	return nil
}

// Execute runs a job's BacktestRunner + Aggregator pipeline to completion,
// transitioning it through running -> completed/failed. Intended to run in
// a worker goroutine, not the request handler.
func Execute(ctx context.Context, jobs *JobManager, runner *btrun.Runner, jobID uuid.UUID) error {
	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("execute: load job: %w", err)
	}
	if err := jobs.UpdateJobStatus(ctx, jobID, JobStatusRunning, ""); err != nil {
		return fmt.Errorf("execute: mark running: %w", err)
	}

	report, err := runner.Run(ctx, job.Coins, job.Timeframe, job.Period, job.RunnerConfig, nil)
	if err != nil {
		_ = jobs.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return fmt.Errorf("execute: run: %w", err)
	}

	var allMatches []domain.SignalMatch
	for _, r := range report.Results {
		allMatches = append(allMatches, r.Matches...)
	}
	agg := btrun.Aggregate(allMatches, job.AggConfig)

	results := &BacktestResults{
		Combinations: agg.Combinations,
		Discarded:    agg.Discarded,
		FailedCoins:  report.FailedCoins,
		MatchCount:   len(agg.KeptMatches),
	}
	if err := jobs.SaveResults(ctx, jobID, results); err != nil {
		return fmt.Errorf("execute: save results: %w", err)
	}
	return nil
}
