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

// WorkflowRepo — определения workflow, pipeline и их графы состояний.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// --- Workflows ---

// SaveWorkflow создаёт или заменяет определение workflow.
func (r *WorkflowRepo) SaveWorkflow(ctx context.Context, w *domain.Workflow) error {
	definition, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	query := `
		INSERT INTO workflows (id, app_id, name, definition)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition
	`
	if _, err := r.pool.Exec(ctx, query, w.ID, w.AppID, w.Name, definition); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// ReadWorkflow возвращает определение workflow.
func (r *WorkflowRepo) ReadWorkflow(ctx context.Context, appID, workflowID string) (*domain.Workflow, error) {
	var definition []byte
	err := r.pool.QueryRow(ctx,
		`SELECT definition FROM workflows WHERE app_id = $1 AND id = $2`,
		appID, workflowID,
	).Scan(&definition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}

	var w domain.Workflow
	if err := json.Unmarshal(definition, &w); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	return &w, nil
}

// --- Pipelines ---

// SavePipeline создаёт или заменяет определение pipeline.
func (r *WorkflowRepo) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pipeline: %w", err)
	}

	query := `
		INSERT INTO pipelines (id, app_id, name, definition)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition
	`
	if _, err := r.pool.Exec(ctx, query, p.ID, p.AppID, p.Name, definition); err != nil {
		return fmt.Errorf("save pipeline: %w", err)
	}
	return nil
}

// ReadPipeline возвращает определение pipeline.
func (r *WorkflowRepo) ReadPipeline(ctx context.Context, appID, pipelineID string) (*domain.Pipeline, error) {
	var definition []byte
	err := r.pool.QueryRow(ctx,
		`SELECT definition FROM pipelines WHERE app_id = $1 AND id = $2`,
		appID, pipelineID,
	).Scan(&definition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}

	var p domain.Pipeline
	if err := json.Unmarshal(definition, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline: %w", err)
	}
	return &p, nil
}

// --- State machines ---

// SaveStateMachine сохраняет новую версию графа.
func (r *WorkflowRepo) SaveStateMachine(ctx context.Context, appID string, sm *domain.StateMachine) error {
	graph, err := json.Marshal(sm)
	if err != nil {
		return fmt.Errorf("marshal state machine: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO state_machines (id, app_id, origin_id, graph) VALUES ($1, $2, $3, $4)`,
		sm.ID, appID, sm.OriginID, graph,
	)
	if err != nil {
		return fmt.Errorf("insert state machine: %w", err)
	}
	return nil
}

// ReadLatestStateMachine возвращает последнюю версию графа для pipeline или workflow.
func (r *WorkflowRepo) ReadLatestStateMachine(ctx context.Context, appID, originID string) (*domain.StateMachine, error) {
	query := `
		SELECT graph
		FROM state_machines
		WHERE app_id = $1 AND origin_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var graph []byte
	err := r.pool.QueryRow(ctx, query, appID, originID).Scan(&graph)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state machine: %w", err)
	}

	var sm domain.StateMachine
	if err := json.Unmarshal(graph, &sm); err != nil {
		return nil, fmt.Errorf("unmarshal state machine: %w", err)
	}
	return &sm, nil
}
