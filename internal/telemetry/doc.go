// Package telemetry обеспечивает наблюдаемость Conveyor.
//
// Включает:
//   - logging.go — structured logging через slog (LOG_LEVEL, LOG_FORMAT),
//     логгер в контексте и атрибуты execution / pipeline execution / barrier
//   - metrics.go — Prometheus метрики refresh, barrier, consumer и sweeper
//
// Сервисы экспортируют метрики на /metrics endpoint.
package telemetry
