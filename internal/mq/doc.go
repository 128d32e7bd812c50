// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — exchanges, queues, bindings
//   - messages.go   — конверт и payload сообщений
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - execution.transition — переход state внутри workflow execution
//   - pipeline.started     — pipeline execution запущен
//   - pipeline.aborted     — pipeline execution отменён
//   - barrier.arrival      — участник дошёл до barrier
//   - barrier.released     — barrier снят, участник может продолжать
//
// Exchanges:
//   - conveyor.executions — события выполнения
//   - conveyor.barriers   — события barrier
//   - conveyor.dlq        — dead letter queue
package mq
