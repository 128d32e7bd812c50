package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// StateExecutionRepo — чтение записей runtime о выполнении state.
// Записи создаёт execution engine; Create используется им и в тестовых стендах.
type StateExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewStateExecutionRepo создаёт новый StateExecutionRepo.
func NewStateExecutionRepo(pool *pgxpool.Pool) *StateExecutionRepo {
	return &StateExecutionRepo{pool: pool}
}

// Create сохраняет запись о выполнении state.
func (r *StateExecutionRepo) Create(ctx context.Context, s *domain.StateExecutionInstance) error {
	dataJSON, err := json.Marshal(s.ExecutionData)
	if err != nil {
		return fmt.Errorf("marshal execution data: %w", err)
	}

	query := `
		INSERT INTO state_execution_instances
			(id, app_id, execution_id, state_name, state_type, status, execution_data, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.AppID,
		s.ExecutionID,
		s.StateName,
		s.StateType,
		s.Status,
		dataJSON,
		s.StartedAt,
		s.FinishedAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert state execution: %w", err)
	}
	return nil
}

// ListByExecution возвращает все записи workflow execution в порядке создания.
func (r *StateExecutionRepo) ListByExecution(ctx context.Context, appID, executionID string) ([]domain.StateExecutionInstance, error) {
	query := `
		SELECT id, app_id, execution_id, state_name, state_type, status,
		       execution_data, started_at, finished_at, created_at
		FROM state_execution_instances
		WHERE app_id = $1 AND execution_id = $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, appID, executionID)
	if err != nil {
		return nil, fmt.Errorf("list state executions: %w", err)
	}
	defer rows.Close()

	var out []domain.StateExecutionInstance
	for rows.Next() {
		s, err := scanStateExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanStateExecution(row pgx.Row) (*domain.StateExecutionInstance, error) {
	var s domain.StateExecutionInstance
	var dataJSON []byte

	err := row.Scan(
		&s.ID,
		&s.AppID,
		&s.ExecutionID,
		&s.StateName,
		&s.StateType,
		&s.Status,
		&dataJSON,
		&s.StartedAt,
		&s.FinishedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan state execution: %w", err)
	}

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &s.ExecutionData); err != nil {
			return nil, fmt.Errorf("unmarshal execution data: %w", err)
		}
	}
	return &s, nil
}
