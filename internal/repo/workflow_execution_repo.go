package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// WorkflowExecutionRepo — статусы workflow executions.
type WorkflowExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowExecutionRepo создаёт новый WorkflowExecutionRepo.
func NewWorkflowExecutionRepo(pool *pgxpool.Pool) *WorkflowExecutionRepo {
	return &WorkflowExecutionRepo{pool: pool}
}

// Create сохраняет workflow execution.
func (r *WorkflowExecutionRepo) Create(ctx context.Context, we *domain.WorkflowExecution) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workflow_executions (id, app_id, workflow_id, name, status) VALUES ($1, $2, $3, $4, $5)`,
		we.ID, we.AppID, we.WorkflowID, we.Name, we.Status,
	)
	if err != nil {
		return fmt.Errorf("insert workflow execution: %w", err)
	}
	return nil
}

// GetExecutionDetailsWithoutGraph возвращает статус workflow execution без графа.
func (r *WorkflowExecutionRepo) GetExecutionDetailsWithoutGraph(ctx context.Context, appID, executionID string) (*domain.WorkflowExecution, error) {
	query := `
		SELECT id, app_id, workflow_id, name, status
		FROM workflow_executions
		WHERE app_id = $1 AND id = $2
	`
	var we domain.WorkflowExecution
	err := r.pool.QueryRow(ctx, query, appID, executionID).Scan(
		&we.ID,
		&we.AppID,
		&we.WorkflowID,
		&we.Name,
		&we.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow execution: %w", err)
	}
	return &we, nil
}

// UpdateStatus обновляет статус workflow execution.
func (r *WorkflowExecutionRepo) UpdateStatus(ctx context.Context, appID, executionID string, status domain.ExecutionStatus) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE workflow_executions SET status = $3 WHERE app_id = $1 AND id = $2`,
		appID, executionID, status,
	)
	if err != nil {
		return fmt.Errorf("update workflow execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
