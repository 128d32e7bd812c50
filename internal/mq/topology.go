package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeExecutions Exchange = "conveyor.executions"
	ExchangeBarriers   Exchange = "conveyor.barriers"
	ExchangeDLQ        Exchange = "conveyor.dlq"
)

// Queues — имена очередей.
const (
	QueueTransitions     Queue = "executions.transition"
	QueuePipelineStarted Queue = "executions.started"
	QueuePipelineAborted Queue = "executions.aborted"
	QueueBarrierArrivals Queue = "barriers.arrival"
	QueueBarrierReleased Queue = "barriers.released"
	QueueDLQ             Queue = "dlq.conveyor"
)

// Routing keys.
const (
	RoutingKeyTransition RoutingKey = "transition"
	RoutingKeyStarted    RoutingKey = "started"
	RoutingKeyAborted    RoutingKey = "aborted"
	RoutingKeyArrival    RoutingKey = "arrival"
	RoutingKeyReleased   RoutingKey = "released"
	RoutingKeyDLQ        RoutingKey = "conveyor"
)

// SetupTopology объявляет exchanges, очереди и привязки.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeExecutions, ExchangeBarriers, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// Уведомления о переходах: refresh идемпотентен, пропуск исправит следующее
		{QueueTransitions, nil},

		// Старт и отмена pipeline: ошибки конфигурации уходят в DLQ
		{QueuePipelineStarted, dlqArgs},
		{QueuePipelineAborted, dlqArgs},

		// Прибытия участников
		{QueueBarrierArrivals, dlqArgs},

		// Снятия barrier: потребитель — execution engine
		{QueueBarrierReleased, nil},

		{QueueDLQ, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTransitions, RoutingKeyTransition, ExchangeExecutions},
		{QueuePipelineStarted, RoutingKeyStarted, ExchangeExecutions},
		{QueuePipelineAborted, RoutingKeyAborted, ExchangeExecutions},
		{QueueBarrierArrivals, RoutingKeyArrival, ExchangeBarriers},
		{QueueBarrierReleased, RoutingKeyReleased, ExchangeBarriers},
		{QueueDLQ, RoutingKeyDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conveyor RabbitMQ Topology:

    conveyor.executions (direct)
    ├── executions.transition [routing: transition]   Consumer: Orchestrator (refresh)
    ├── executions.started    [routing: started]      Consumer: Orchestrator (barrier discovery), DLQ
    └── executions.aborted    [routing: aborted]      Consumer: Orchestrator (abandon), DLQ

    conveyor.barriers (direct)
    ├── barriers.arrival      [routing: arrival]      Consumer: Orchestrator (arrive), DLQ
    └── barriers.released     [routing: released]     Consumer: execution engine

    conveyor.dlq (direct)
    └── dlq.conveyor          [routing: conveyor]     Manual processing
  `
}
