// Package orchestrator обрабатывает события выполнения pipeline.
//
// Orchestrator отвечает за:
//   - Пересчёт проекции pipeline execution при каждом переходе state
//   - Поиск barrier при старте pipeline execution
//   - Регистрацию прибытия участников к barrier
//   - Снятие barrier при отмене pipeline execution
//
// Ошибки конфигурации отклоняются без повтора (DLQ),
// временные ошибки возвращают сообщение в очередь.
package orchestrator
