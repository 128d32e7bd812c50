package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
)

// Default configuration values.
const (
	defaultPrefetch = 10
)

// Refresher пересчитывает проекцию pipeline execution.
type Refresher interface {
	Refresh(ctx context.Context, appID, workflowExecutionID string) error
}

// Barriers — операции barrier, которые выполняет оркестратор.
type Barriers interface {
	ConstructBarriers(ctx context.Context, p *domain.Pipeline, pipelineExecutionID string) ([]domain.BarrierInstance, error)
	Arrive(ctx context.Context, pipelineExecutionID, identifier string, participant domain.BarrierParticipant) (barrier.WaitOutcome, error)
	Abandon(ctx context.Context, pipelineExecutionID string) (int, error)
}

// PipelineReader — чтение определений pipeline.
type PipelineReader interface {
	ReadPipeline(ctx context.Context, appID, pipelineID string) (*domain.Pipeline, error)
}

// ExecutionStatusWriter — изменение статуса pipeline execution.
type ExecutionStatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status domain.ExecutionStatus) error
}

// WorkflowExecutionStatusWriter — изменение статуса workflow execution.
type WorkflowExecutionStatusWriter interface {
	UpdateStatus(ctx context.Context, appID, id string, status domain.ExecutionStatus) error
}

// Orchestrator потребляет события выполнения и вызывает
// reconciler и barrier synchronizer.
//
// Orchestrator не хранит состояния выполнения: всё состояние
// находится в БД, поэтому несколько экземпляров могут работать параллельно.
type Orchestrator struct {
	refresher  Refresher
	barriers   Barriers
	pipelines  PipelineReader
	executions ExecutionStatusWriter
	wfExecs    WorkflowExecutionStatusWriter
	notifier   barrier.Notifier

	conn     *mq.Connection
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	Refresher  Refresher
	Barriers   Barriers
	Pipelines  PipelineReader
	Executions ExecutionStatusWriter

	// WorkflowExecutions — workflow execution, которые завершаются
	// при ошибке конфигурации barrier.
	WorkflowExecutions WorkflowExecutionStatusWriter

	// Notifier — уведомление участника, которого barrier не задерживает.
	Notifier barrier.Notifier

	// MQ
	Conn     *mq.Connection
	Prefetch int // default: 10

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		refresher:  cfg.Refresher,
		barriers:   cfg.Barriers,
		pipelines:  cfg.Pipelines,
		executions: cfg.Executions,
		wfExecs:    cfg.WorkflowExecutions,
		notifier:   cfg.Notifier,
		conn:       cfg.Conn,
		prefetch:   prefetch,
		logger:     logger,
	}
}

// Start запускает consumers всех очередей оркестратора.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	consumers := []mq.ConsumerConfig{
		{Queue: mq.QueueTransitions, Handler: o.handleTransition},
		{Queue: mq.QueuePipelineStarted, Handler: o.handlePipelineStarted},
		{Queue: mq.QueuePipelineAborted, Handler: o.handlePipelineAborted},
		{Queue: mq.QueueBarrierArrivals, Handler: o.handleBarrierArrival},
	}

	for _, cfg := range consumers {
		cfg.Prefetch = o.prefetch
		consumer := mq.NewConsumer(o.conn, o.logger, cfg)

		o.wg.Add(1)
		go func(queue mq.Queue) {
			defer o.wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("consumer error", "queue", queue, "error", err)
			}
		}(cfg.Queue)
	}

	o.logger.Info("orchestrator started", "consumers", len(consumers), "prefetch", o.prefetch)
	return nil
}

// Stop останавливает consumers и ждёт их завершения.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}
