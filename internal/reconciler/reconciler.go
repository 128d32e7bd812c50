package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ErrNoStateMachine — для pipeline не найден граф состояний.
var ErrNoStateMachine = errors.New("pipeline has no state machine")

// PipelineExecutionStore — хранилище pipeline executions.
type PipelineExecutionStore interface {
	// GetByWorkflowExecutionID возвращает pipeline execution по ID workflow execution.
	GetByWorkflowExecutionID(ctx context.Context, appID, workflowExecutionID string) (*domain.PipelineExecution, error)

	// SaveProjection одной записью сохраняет статус и StageExecutions.
	SaveProjection(ctx context.Context, pe *domain.PipelineExecution) error
}

// StateExecutionStore — чтение записей runtime о выполнении state.
type StateExecutionStore interface {
	ListByExecution(ctx context.Context, appID, executionID string) ([]domain.StateExecutionInstance, error)
}

// WorkflowService — доступ к графам состояний.
type WorkflowService interface {
	ReadLatestStateMachine(ctx context.Context, appID, originID string) (*domain.StateMachine, error)
}

// WorkflowExecutionService — статусы workflow executions.
type WorkflowExecutionService interface {
	// GetExecutionDetailsWithoutGraph возвращает только статус выполнения.
	GetExecutionDetailsWithoutGraph(ctx context.Context, appID, executionID string) (*domain.WorkflowExecution, error)
}

// Reconciler пересчитывает проекцию pipeline execution.
//
// Refresh не хранит состояния между вызовами: каждый вызов полностью
// пересчитывает StageExecutions, поэтому повторный или пропущенный
// вызов исправляется следующим уведомлением.
type Reconciler struct {
	executions PipelineExecutionStore
	states     StateExecutionStore
	workflows  WorkflowService
	wfExecs    WorkflowExecutionService

	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Reconciler.
type Config struct {
	Executions         PipelineExecutionStore
	StateExecutions    StateExecutionStore
	Workflows          WorkflowService
	WorkflowExecutions WorkflowExecutionService

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт Reconciler.
func New(cfg Config) *Reconciler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		executions: cfg.Executions,
		states:     cfg.StateExecutions,
		workflows:  cfg.Workflows,
		wfExecs:    cfg.WorkflowExecutions,
		now:        now,
		logger:     logger,
	}
}

// Refresh пересчитывает статус pipeline execution, связанного с workflowExecutionID.
//
// Для завершённого pipeline execution ничего не делает.
// Ошибки коллабораторов возвращаются вызывающему без повторов.
func (r *Reconciler) Refresh(ctx context.Context, appID, workflowExecutionID string) error {
	start := time.Now()
	defer func() {
		telemetry.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	outcome, err := r.refresh(ctx, appID, workflowExecutionID)
	if err != nil {
		telemetry.RefreshTotal.WithLabelValues(telemetry.RefreshOutcomeError).Inc()
		return err
	}
	telemetry.RefreshTotal.WithLabelValues(outcome).Inc()
	return nil
}

func (r *Reconciler) refresh(ctx context.Context, appID, workflowExecutionID string) (string, error) {
	logger := telemetry.WithExecutionID(r.logger, workflowExecutionID)

	pe, err := r.executions.GetByWorkflowExecutionID(ctx, appID, workflowExecutionID)
	if err != nil {
		return "", fmt.Errorf("load pipeline execution: %w", err)
	}

	if pe.IsFinished() {
		logger.Debug("pipeline execution already finished", "status", pe.Status)
		return telemetry.RefreshOutcomeTerminal, nil
	}

	sm, err := r.workflows.ReadLatestStateMachine(ctx, appID, pe.PipelineID)
	if err != nil {
		return "", fmt.Errorf("read state machine: %w", err)
	}
	if sm == nil {
		return "", fmt.Errorf("%w: %s", ErrNoStateMachine, pe.PipelineID)
	}

	instances, err := r.states.ListByExecution(ctx, appID, workflowExecutionID)
	if err != nil {
		return "", fmt.Errorf("list state executions: %w", err)
	}

	enclosing, err := r.wfExecs.GetExecutionDetailsWithoutGraph(ctx, appID, workflowExecutionID)
	if err != nil {
		return "", fmt.Errorf("get enclosing execution: %w", err)
	}

	nested := make(map[string]domain.WorkflowExecution)
	for _, id := range nestedExecutionIDs(sm, instances) {
		we, err := r.wfExecs.GetExecutionDetailsWithoutGraph(ctx, appID, id)
		if err != nil {
			return "", fmt.Errorf("get nested execution %s: %w", id, err)
		}
		nested[id] = *we
	}

	snap := Project(sm, instances, enclosing, nested)

	pe.Status = snap.Status
	pe.StageExecutions = snap.StageExecutions
	pe.UpdatedAt = r.now()

	if err := r.executions.SaveProjection(ctx, pe); err != nil {
		return "", fmt.Errorf("save projection: %w", err)
	}

	logger.Debug("pipeline execution refreshed",
		"pipeline_execution_id", pe.ID,
		"status", pe.Status,
		"stages", len(pe.StageExecutions),
	)

	return telemetry.RefreshOutcomeUpdated, nil
}
