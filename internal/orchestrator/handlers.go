package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// handleTransition обрабатывает уведомление о переходе state.
func (o *Orchestrator) handleTransition(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TransitionPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(err)
	}
	return o.processTransition(ctx, payload)
}

// processTransition пересчитывает проекцию pipeline execution.
//
// Неизвестный workflow execution не повторяется: переход мог относиться
// к workflow вне pipeline. Остальные ошибки возвращают сообщение в очередь.
func (o *Orchestrator) processTransition(ctx context.Context, payload mq.TransitionPayload) error {
	if payload.AppID == "" || payload.WorkflowExecutionID == "" {
		return mq.Permanent(fmt.Errorf("%w: transition without app or execution id", ErrInvalidPayload))
	}

	logger := telemetry.WithExecutionID(telemetry.FromContext(ctx), payload.WorkflowExecutionID)

	err := o.refresher.Refresh(ctx, payload.AppID, payload.WorkflowExecutionID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("refresh skipped: execution not found", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	logger.Debug("pipeline execution refreshed", "state", payload.StateName, "status", payload.Status)
	return nil
}

// handlePipelineStarted обрабатывает старт pipeline execution.
func (o *Orchestrator) handlePipelineStarted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.PipelineStartedPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(err)
	}
	return o.processPipelineStarted(ctx, payload)
}

// processPipelineStarted ищет barrier нового pipeline execution.
//
// Ошибка конфигурации barrier завершает pipeline execution и его
// workflow execution со статусом ERROR.
// Повторная доставка того же события не создаёт barrier повторно.
func (o *Orchestrator) processPipelineStarted(ctx context.Context, payload mq.PipelineStartedPayload) error {
	if payload.AppID == "" || payload.PipelineID == "" || payload.PipelineExecutionID == "" {
		return mq.Permanent(fmt.Errorf("%w: pipeline.started without ids", ErrInvalidPayload))
	}

	logger := telemetry.WithPipelineExecutionID(telemetry.FromContext(ctx), payload.PipelineExecutionID)

	p, err := o.pipelines.ReadPipeline(ctx, payload.AppID, payload.PipelineID)
	if errors.Is(err, repo.ErrNotFound) {
		return mq.Permanent(fmt.Errorf("read pipeline %s: %w", payload.PipelineID, err))
	}
	if err != nil {
		return fmt.Errorf("read pipeline %s: %w", payload.PipelineID, err)
	}

	instances, err := o.barriers.ConstructBarriers(ctx, p, payload.PipelineExecutionID)
	if err != nil {
		var bErr *barrier.Error
		if errors.Is(err, repo.ErrNotFound) {
			return mq.Permanent(fmt.Errorf("construct barriers: %w", err))
		}
		if !errors.As(err, &bErr) {
			return fmt.Errorf("construct barriers: %w", err)
		}

		logger.Error("invalid barrier configuration", "code", bErr.Code, "error", bErr.Message)
		if err := o.executions.UpdateStatus(ctx, payload.PipelineExecutionID, domain.ExecutionStatusError); err != nil {
			return fmt.Errorf("mark pipeline execution failed: %w", err)
		}
		if o.wfExecs != nil && payload.WorkflowExecutionID != "" {
			err := o.wfExecs.UpdateStatus(ctx, payload.AppID, payload.WorkflowExecutionID, domain.ExecutionStatusError)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("mark workflow execution failed: %w", err)
			}
		}
		return mq.Permanent(err)
	}

	logger.Info("barriers constructed", "count", len(instances))
	return nil
}

// handlePipelineAborted обрабатывает отмену pipeline execution.
func (o *Orchestrator) handlePipelineAborted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.PipelineAbortedPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(err)
	}
	return o.processPipelineAborted(ctx, payload)
}

// processPipelineAborted снимает все стоящие barrier и обновляет проекцию.
func (o *Orchestrator) processPipelineAborted(ctx context.Context, payload mq.PipelineAbortedPayload) error {
	if payload.PipelineExecutionID == "" {
		return mq.Permanent(fmt.Errorf("%w: pipeline.aborted without execution id", ErrInvalidPayload))
	}

	logger := telemetry.WithPipelineExecutionID(telemetry.FromContext(ctx), payload.PipelineExecutionID)

	released, err := o.barriers.Abandon(ctx, payload.PipelineExecutionID)
	if err != nil {
		return fmt.Errorf("abandon barriers: %w", err)
	}
	if released > 0 {
		logger.Info("barriers abandoned", "count", released)
	}

	if payload.AppID != "" && payload.WorkflowExecutionID != "" {
		err := o.refresher.Refresh(ctx, payload.AppID, payload.WorkflowExecutionID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("refresh: %w", err)
		}
	}
	return nil
}

// handleBarrierArrival обрабатывает прибытие участника к barrier.
func (o *Orchestrator) handleBarrierArrival(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.BarrierArrivalPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(err)
	}
	return o.processBarrierArrival(ctx, payload)
}

// processBarrierArrival регистрирует прибытие.
//
// Участник, которого barrier не задерживает, сразу получает уведомление.
// О снятии barrier уведомляет synchronizer.
func (o *Orchestrator) processBarrierArrival(ctx context.Context, payload mq.BarrierArrivalPayload) error {
	if payload.PipelineExecutionID == "" || payload.Identifier == "" {
		return mq.Permanent(fmt.Errorf("%w: barrier.arrival without execution id or identifier", ErrInvalidPayload))
	}

	logger := telemetry.WithBarrier(
		telemetry.WithPipelineExecutionID(telemetry.FromContext(ctx), payload.PipelineExecutionID),
		payload.Identifier,
	)
	participant := payload.Participant()

	outcome, err := o.barriers.Arrive(ctx, payload.PipelineExecutionID, payload.Identifier, participant)
	if err != nil {
		return fmt.Errorf("arrive: %w", err)
	}

	logger.Debug("barrier arrival", "workflow_id", participant.WorkflowID, "outcome", outcome)

	if outcome != barrier.OutcomeProceed || o.notifier == nil {
		return nil
	}

	inst := &domain.BarrierInstance{
		Name:                payload.Identifier,
		PipelineExecutionID: payload.PipelineExecutionID,
	}
	if err := o.notifier.PublishBarrierReleased(ctx, inst, participant); err != nil {
		return fmt.Errorf("publish release: %w", err)
	}
	return nil
}
