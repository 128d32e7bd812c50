package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInvalidPayload — payload сообщения не содержит обязательных полей.
	ErrInvalidPayload = errors.New("invalid message payload")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
