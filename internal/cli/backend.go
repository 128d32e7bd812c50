package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/reconciler"
	"github.com/shaiso/Conveyor/internal/repo"
)

// ErrUnknownState — state с таким именем нет в графе pipeline.
var ErrUnknownState = errors.New("state not found in pipeline state machine")

// Backend — доступ CLI к базе данных и, опционально, к брокеру Conveyor.
//
// С брокером команды публикуют события и их обрабатывает orchestrator.
// Без брокера те же операции выполняются напрямую через reconciler
// и synchronizer; ожидающие участники увидят снятие barrier при опросе.
type Backend struct {
	pool   *pgxpool.Pool
	mqConn *mq.Connection

	Workflows          *repo.WorkflowRepo
	Executions         *repo.PipelineExecutionRepo
	WorkflowExecutions *repo.WorkflowExecutionRepo
	StateExecutions    *repo.StateExecutionRepo
	Barriers           *repo.BarrierRepo
	Reconciler         *reconciler.Reconciler
	Synchronizer       *barrier.Synchronizer

	// Publisher — nil без брокера.
	Publisher *mq.Publisher

	now func() time.Time
}

// BackendConfig — параметры подключения CLI.
type BackendConfig struct {
	// DBURL — DSN PostgreSQL (пусто — DB_URL или локальный DSN).
	DBURL string

	// AMQPURL — адрес RabbitMQ (пусто — работа без брокера).
	AMQPURL string

	Logger *slog.Logger
}

// NewBackend подключается к БД и, если задан AMQPURL, к брокеру.
func NewBackend(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		pool *pgxpool.Pool
		err  error
	)
	if cfg.DBURL != "" {
		pool, err = repo.NewPoolWithDSN(ctx, cfg.DBURL)
	} else {
		pool, err = repo.NewPool(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	b := &Backend{
		pool:               pool,
		Workflows:          repo.NewWorkflowRepo(pool),
		Executions:         repo.NewPipelineExecutionRepo(pool),
		WorkflowExecutions: repo.NewWorkflowExecutionRepo(pool),
		StateExecutions:    repo.NewStateExecutionRepo(pool),
		Barriers:           repo.NewBarrierRepo(pool),
		now:                time.Now,
	}

	syncCfg := barrier.Config{
		Store:     b.Barriers,
		Workflows: b.Workflows,
		Logger:    logger,
	}

	if cfg.AMQPURL != "" {
		conn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.AMQPURL, Logger: logger})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		b.mqConn = conn
		b.Publisher = mq.NewPublisher(conn, logger)
		syncCfg.Notifier = b.Publisher
	}

	b.Reconciler = reconciler.New(reconciler.Config{
		Executions:         b.Executions,
		StateExecutions:    b.StateExecutions,
		Workflows:          b.Workflows,
		WorkflowExecutions: b.WorkflowExecutions,
		Logger:             logger,
	})
	b.Synchronizer = barrier.New(syncCfg)

	return b, nil
}

// Close закрывает соединения.
func (b *Backend) Close() {
	if b.mqConn != nil {
		_ = b.mqConn.Close()
	}
	b.pool.Close()
}

// Apply сохраняет определения и новую версию графа pipeline.
func (b *Backend) Apply(ctx context.Context, p *domain.Pipeline, workflows []*domain.Workflow) (*domain.StateMachine, error) {
	sm, err := engine.CompilePipeline(p, uuid.NewString())
	if err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		if err := b.Workflows.SaveWorkflow(ctx, wf); err != nil {
			return nil, err
		}
	}
	if err := b.Workflows.SavePipeline(ctx, p); err != nil {
		return nil, err
	}
	if err := b.Workflows.SaveStateMachine(ctx, p.AppID, sm); err != nil {
		return nil, err
	}
	return sm, nil
}

// StartPipeline создаёт pipeline execution и его workflow execution.
//
// С брокером публикует pipeline.started; без него сразу ищет barrier.
// Ошибка конфигурации barrier переводит pipeline execution в ERROR.
func (b *Backend) StartPipeline(ctx context.Context, appID, pipelineID string) (*domain.PipelineExecution, error) {
	p, err := b.Workflows.ReadPipeline(ctx, appID, pipelineID)
	if err != nil {
		return nil, err
	}

	we := &domain.WorkflowExecution{
		ID:         uuid.NewString(),
		AppID:      appID,
		WorkflowID: pipelineID,
		Name:       p.Name,
		Status:     domain.ExecutionStatusRunning,
	}
	if err := b.WorkflowExecutions.Create(ctx, we); err != nil {
		return nil, err
	}

	pe := &domain.PipelineExecution{
		ID:                  uuid.NewString(),
		AppID:               appID,
		PipelineID:          pipelineID,
		WorkflowExecutionID: we.ID,
		Status:              domain.ExecutionStatusRunning,
		UpdatedAt:           b.now(),
	}
	if err := b.Executions.Create(ctx, pe); err != nil {
		return nil, err
	}

	if b.Publisher != nil {
		err := b.Publisher.PublishPipelineStarted(ctx, mq.PipelineStartedPayload{
			AppID:               appID,
			PipelineID:          pipelineID,
			PipelineExecutionID: pe.ID,
			WorkflowExecutionID: we.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("publish pipeline.started: %w", err)
		}
		return pe, nil
	}

	if _, err := b.Synchronizer.ConstructBarriers(ctx, p, pe.ID); err != nil {
		var bErr *barrier.Error
		if errors.As(err, &bErr) {
			if uErr := b.Executions.UpdateStatus(ctx, pe.ID, domain.ExecutionStatusError); uErr != nil {
				return nil, uErr
			}
			if uErr := b.WorkflowExecutions.UpdateStatus(ctx, appID, we.ID, domain.ExecutionStatusError); uErr != nil {
				return nil, uErr
			}
		}
		return nil, err
	}
	return pe, nil
}

// StateRecord — запись runtime о выполнении state.
type StateRecord struct {
	StateName         string
	Status            domain.ExecutionStatus
	NestedExecutionID string
	ErrorMessage      string
}

// RecordState сохраняет запись о выполнении state и пересчитывает проекцию.
func (b *Backend) RecordState(ctx context.Context, appID, workflowExecutionID string, rec StateRecord) error {
	pe, err := b.Executions.GetByWorkflowExecutionID(ctx, appID, workflowExecutionID)
	if err != nil {
		return err
	}

	sm, err := b.Workflows.ReadLatestStateMachine(ctx, appID, pe.PipelineID)
	if err != nil {
		return err
	}
	state := sm.State(rec.StateName)
	if state == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, rec.StateName)
	}

	inst := newStateInstance(appID, workflowExecutionID, state.Type, rec, b.now())
	if err := b.StateExecutions.Create(ctx, inst); err != nil {
		return err
	}

	return b.notifyTransition(ctx, mq.TransitionPayload{
		AppID:               appID,
		WorkflowExecutionID: workflowExecutionID,
		StateName:           rec.StateName,
		Status:              rec.Status,
	})
}

// Abort отменяет workflow execution pipeline и снимает его barrier.
func (b *Backend) Abort(ctx context.Context, appID, workflowExecutionID string) error {
	pe, err := b.Executions.GetByWorkflowExecutionID(ctx, appID, workflowExecutionID)
	if err != nil {
		return err
	}

	if err := b.WorkflowExecutions.UpdateStatus(ctx, appID, workflowExecutionID, domain.ExecutionStatusAborted); err != nil {
		return err
	}

	if b.Publisher != nil {
		return b.Publisher.PublishPipelineAborted(ctx, mq.PipelineAbortedPayload{
			AppID:               appID,
			PipelineExecutionID: pe.ID,
			WorkflowExecutionID: workflowExecutionID,
		})
	}

	if _, err := b.Synchronizer.Abandon(ctx, pe.ID); err != nil {
		return err
	}
	return b.Reconciler.Refresh(ctx, appID, workflowExecutionID)
}

// Arrive регистрирует прибытие участника к barrier.
// С брокером публикует barrier.arrival и возвращает пустой исход.
func (b *Backend) Arrive(ctx context.Context, pipelineExecutionID, identifier string, p domain.BarrierParticipant) (barrier.WaitOutcome, error) {
	if b.Publisher != nil {
		return "", b.Publisher.PublishBarrierArrival(ctx, mq.BarrierArrivalPayload{
			PipelineExecutionID:    pipelineExecutionID,
			Identifier:             identifier,
			WorkflowID:             p.WorkflowID,
			PipelineStageElementID: p.PipelineStageElementID,
		})
	}
	return b.Synchronizer.Arrive(ctx, pipelineExecutionID, identifier, p)
}

func (b *Backend) notifyTransition(ctx context.Context, payload mq.TransitionPayload) error {
	if b.Publisher != nil {
		return b.Publisher.PublishTransition(ctx, payload)
	}
	return b.Reconciler.Refresh(ctx, payload.AppID, payload.WorkflowExecutionID)
}

// newStateInstance строит запись о выполнении state.
// Время завершения выставляется для финальных статусов.
func newStateInstance(appID, workflowExecutionID string, stateType domain.StateType, rec StateRecord, now time.Time) *domain.StateExecutionInstance {
	data := map[string]any{}
	if rec.NestedExecutionID != "" {
		data[domain.DataWorkflowExecutionID] = rec.NestedExecutionID
	}
	if rec.ErrorMessage != "" {
		data[domain.DataErrorMsg] = rec.ErrorMessage
	}

	inst := &domain.StateExecutionInstance{
		ID:            uuid.NewString(),
		AppID:         appID,
		ExecutionID:   workflowExecutionID,
		StateName:     rec.StateName,
		StateType:     stateType,
		Status:        rec.Status,
		ExecutionData: data,
		StartedAt:     &now,
		CreatedAt:     now,
	}
	if rec.Status.IsTerminal() {
		finished := now
		inst.FinishedAt = &finished
	}
	return inst
}
