package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Cascade/internal/domain"
)

const runColumns = `id, workflow_id, config_uri, batch_date, decision_trace_id, status, cause,
	failed_stage, stages, started_at, finished_at, error, created_at`

// RunRepo — журнал запусков.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новую запись run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, workflow_id, config_uri, batch_date, decision_trace_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowID,
		nullString(run.ConfigURI),
		nullString(run.BatchDate),
		nullString(run.DecisionTraceID),
		run.Status,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR batch_date = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		nullString(filter.BatchDate),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListPending возвращает runs в статусе PENDING (старые первыми).
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	return collectRuns(rows)
}

// Claim атомарно переводит run из PENDING в RUNNING.
// Возвращает false, если run уже взят другим обработчиком.
func (r *RunRepo) Claim(ctx context.Context, run *domain.Run) (bool, error) {
	run.MarkRunning()
	result, err := r.pool.Exec(ctx,
		`UPDATE runs SET status = $2, started_at = $3 WHERE id = $1 AND status = 'PENDING'`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Update сохраняет результат выполнения run.
// Записывается только итог: незавершённый run возвращает ErrInvalidState.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	if !run.IsFinished() {
		return fmt.Errorf("%w: update with status %s", ErrInvalidState, run.Status)
	}

	stagesJSON, err := marshalStages(run.Stages)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET status = $2, config_uri = $3, cause = $4, failed_stage = $5, stages = $6,
		    started_at = $7, finished_at = $8, error = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(run.ConfigURI),
		nullString(string(run.Cause)),
		nullString(string(run.FailedStage)),
		stagesJSON,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Status    domain.RunStatus
	BatchDate string
	Limit     int
	Offset    int
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в Run (pgx.Row и pgx.Rows).
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var configURI, batchDate, traceID, cause, failedStage, runError *string
	var stagesJSON []byte

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&configURI,
		&batchDate,
		&traceID,
		&run.Status,
		&cause,
		&failedStage,
		&stagesJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.ConfigURI = deref(configURI)
	run.BatchDate = deref(batchDate)
	run.DecisionTraceID = deref(traceID)
	run.Cause = domain.FailureCause(deref(cause))
	run.FailedStage = domain.StageKey(deref(failedStage))
	run.Error = deref(runError)

	stages, err := unmarshalStages(stagesJSON)
	if err != nil {
		return nil, err
	}
	run.Stages = stages

	return &run, nil
}

func marshalStages(stages []domain.StageRun) ([]byte, error) {
	if len(stages) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("marshal stages: %w", err)
	}
	return data, nil
}

func unmarshalStages(data []byte) ([]domain.StageRun, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var stages []domain.StageRun
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	return stages, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
