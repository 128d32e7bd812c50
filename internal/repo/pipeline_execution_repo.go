package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// PipelineExecutionRepo — репозиторий pipeline executions.
type PipelineExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineExecutionRepo создаёт новый PipelineExecutionRepo.
func NewPipelineExecutionRepo(pool *pgxpool.Pool) *PipelineExecutionRepo {
	return &PipelineExecutionRepo{pool: pool}
}

const pipelineExecutionColumns = `id, app_id, pipeline_id, workflow_execution_id, status, stage_executions, updated_at`

// terminalStatusList — терминальные статусы для условий WHERE.
const terminalStatusList = `'SUCCESS', 'FAILED', 'ERROR', 'ABORTED', 'REJECTED', 'EXPIRED', 'SKIPPED'`

// Create создаёт pipeline execution.
// Повторное создание для того же workflow execution — ErrAlreadyExists.
func (r *PipelineExecutionRepo) Create(ctx context.Context, pe *domain.PipelineExecution) error {
	stagesJSON, err := marshalStages(pe.StageExecutions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline_executions (` + pipelineExecutionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_execution_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		pe.ID,
		pe.AppID,
		pe.PipelineID,
		pe.WorkflowExecutionID,
		pe.Status,
		stagesJSON,
		pe.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByWorkflowExecutionID возвращает pipeline execution по ID workflow execution.
func (r *PipelineExecutionRepo) GetByWorkflowExecutionID(ctx context.Context, appID, workflowExecutionID string) (*domain.PipelineExecution, error) {
	query := `
		SELECT ` + pipelineExecutionColumns + `
		FROM pipeline_executions
		WHERE app_id = $1 AND workflow_execution_id = $2
	`
	return scanPipelineExecution(r.pool.QueryRow(ctx, query, appID, workflowExecutionID))
}

// GetByID возвращает pipeline execution по ID.
func (r *PipelineExecutionRepo) GetByID(ctx context.Context, id string) (*domain.PipelineExecution, error) {
	query := `
		SELECT ` + pipelineExecutionColumns + `
		FROM pipeline_executions
		WHERE id = $1
	`
	return scanPipelineExecution(r.pool.QueryRow(ctx, query, id))
}

// GetByWorkflowExecution возвращает pipeline execution по ID workflow execution без app_id.
func (r *PipelineExecutionRepo) GetByWorkflowExecution(ctx context.Context, workflowExecutionID string) (*domain.PipelineExecution, error) {
	query := `
		SELECT ` + pipelineExecutionColumns + `
		FROM pipeline_executions
		WHERE workflow_execution_id = $1
	`
	return scanPipelineExecution(r.pool.QueryRow(ctx, query, workflowExecutionID))
}

// SaveProjection заменяет статус и StageExecutions одной записью.
//
// Завершённая запись не перезаписывается: сохранение поверх терминального
// статуса (например, ERROR после ошибки конфигурации barrier) ничего не делает.
func (r *PipelineExecutionRepo) SaveProjection(ctx context.Context, pe *domain.PipelineExecution) error {
	stagesJSON, err := marshalStages(pe.StageExecutions)
	if err != nil {
		return err
	}

	query := `
		UPDATE pipeline_executions
		SET status = $2, stage_executions = $3, updated_at = $4
		WHERE id = $1
		  AND status NOT IN (` + terminalStatusList + `)
	`
	result, err := r.pool.Exec(ctx, query, pe.ID, pe.Status, stagesJSON, pe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pipeline execution: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pipeline_executions WHERE id = $1)`, pe.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check pipeline execution: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus обновляет только статус.
func (r *PipelineExecutionRepo) UpdateStatus(ctx context.Context, id string, status domain.ExecutionStatus) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE pipeline_executions SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update pipeline execution status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive возвращает незавершённые pipeline executions, давно не обновлявшиеся первыми.
func (r *PipelineExecutionRepo) ListActive(ctx context.Context, limit int) ([]domain.PipelineExecution, error) {
	query := `
		SELECT ` + pipelineExecutionColumns + `
		FROM pipeline_executions
		WHERE status NOT IN (` + terminalStatusList + `)
		ORDER BY updated_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list active pipeline executions: %w", err)
	}
	defer rows.Close()

	var out []domain.PipelineExecution
	for rows.Next() {
		pe, err := scanPipelineExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pe)
	}
	return out, rows.Err()
}

// --- Helpers ---

func marshalStages(stages []domain.PipelineStageExecution) ([]byte, error) {
	if stages == nil {
		stages = []domain.PipelineStageExecution{}
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("marshal stage executions: %w", err)
	}
	return data, nil
}

// scanPipelineExecution сканирует одну строку в PipelineExecution.
func scanPipelineExecution(row pgx.Row) (*domain.PipelineExecution, error) {
	var pe domain.PipelineExecution
	var stagesJSON []byte

	err := row.Scan(
		&pe.ID,
		&pe.AppID,
		&pe.PipelineID,
		&pe.WorkflowExecutionID,
		&pe.Status,
		&stagesJSON,
		&pe.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline execution: %w", err)
	}

	if stagesJSON != nil {
		if err := json.Unmarshal(stagesJSON, &pe.StageExecutions); err != nil {
			return nil, fmt.Errorf("unmarshal stage executions: %w", err)
		}
	}
	return &pe, nil
}
