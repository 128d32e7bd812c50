package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// NewMessage создаёт конверт с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishTransition публикует уведомление о переходе state.
// Потребитель: Orchestrator (refresh).
func (p *Publisher) PublishTransition(ctx context.Context, payload TransitionPayload) error {
	return p.Publish(ctx, ExchangeExecutions, RoutingKeyTransition,
		NewMessage(MessageTypeTransition, payload))
}

// PublishPipelineStarted публикует событие о старте pipeline execution.
// Потребитель: Orchestrator (поиск barrier).
func (p *Publisher) PublishPipelineStarted(ctx context.Context, payload PipelineStartedPayload) error {
	return p.Publish(ctx, ExchangeExecutions, RoutingKeyStarted,
		NewMessage(MessageTypePipelineStarted, payload))
}

// PublishPipelineAborted публикует событие об отмене pipeline execution.
// Потребитель: Orchestrator (снятие barrier).
func (p *Publisher) PublishPipelineAborted(ctx context.Context, payload PipelineAbortedPayload) error {
	return p.Publish(ctx, ExchangeExecutions, RoutingKeyAborted,
		NewMessage(MessageTypePipelineAborted, payload))
}

// PublishBarrierArrival публикует прибытие участника к barrier.
func (p *Publisher) PublishBarrierArrival(ctx context.Context, payload BarrierArrivalPayload) error {
	return p.Publish(ctx, ExchangeBarriers, RoutingKeyArrival,
		NewMessage(MessageTypeBarrierArrival, payload))
}

// PublishBarrierReleased уведомляет участника о снятии barrier.
// Потребитель: execution engine, возобновляющий шаг участника.
func (p *Publisher) PublishBarrierReleased(ctx context.Context, inst *domain.BarrierInstance, participant domain.BarrierParticipant) error {
	payload := BarrierReleasedPayload{
		PipelineExecutionID:    inst.PipelineExecutionID,
		Identifier:             inst.Name,
		WorkflowID:             participant.WorkflowID,
		PipelineStageElementID: participant.PipelineStageElementID,
		Reason:                 inst.ReleaseReason,
	}
	return p.Publish(ctx, ExchangeBarriers, RoutingKeyReleased,
		NewMessage(MessageTypeBarrierReleased, payload))
}
