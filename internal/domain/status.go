package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus — строка не является статусом выполнения.
var ErrUnknownStatus = errors.New("unknown execution status")

// ExecutionStatus — статус выполнения (pipeline, workflow, отдельного state).
//
// Жизненный цикл (упрощённо):
//
//	NEW → QUEUED → STARTING → RUNNING → SUCCESS
//	                                  ↘ FAILED / ERROR
//	               (или) → PAUSING → PAUSED → RUNNING
//	               (или) → WAITING (approval, barrier)
//	               (или) → ABORTING → ABORTED
type ExecutionStatus string

const (
	// ExecutionStatusNew — выполнение создано, но ещё не поставлено в очередь.
	ExecutionStatusNew ExecutionStatus = "NEW"

	// ExecutionStatusQueued — ожидает запуска.
	// Так же помечаются стадии pipeline, до которых выполнение ещё не дошло.
	ExecutionStatusQueued ExecutionStatus = "QUEUED"

	// ExecutionStatusStarting — запуск в процессе.
	ExecutionStatusStarting ExecutionStatus = "STARTING"

	// ExecutionStatusRunning — выполняется.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusPausing — приостанавливается.
	ExecutionStatusPausing ExecutionStatus = "PAUSING"

	// ExecutionStatusPaused — приостановлено.
	ExecutionStatusPaused ExecutionStatus = "PAUSED"

	// ExecutionStatusWaiting — ждёт внешнего события (approval).
	ExecutionStatusWaiting ExecutionStatus = "WAITING"

	// ExecutionStatusSuccess — успешно завершено.
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"

	// ExecutionStatusFailed — завершено с ошибкой.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusError — завершено из-за инфраструктурной ошибки.
	ExecutionStatusError ExecutionStatus = "ERROR"

	// ExecutionStatusAborting — отменяется.
	ExecutionStatusAborting ExecutionStatus = "ABORTING"

	// ExecutionStatusAborted — отменено пользователем.
	ExecutionStatusAborted ExecutionStatus = "ABORTED"

	// ExecutionStatusRejected — отклонено (approval).
	ExecutionStatusRejected ExecutionStatus = "REJECTED"

	// ExecutionStatusExpired — истёк срок ожидания (approval).
	ExecutionStatusExpired ExecutionStatus = "EXPIRED"

	// ExecutionStatusSkipped — пропущено.
	ExecutionStatusSkipped ExecutionStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess,
		ExecutionStatusFailed,
		ExecutionStatusError,
		ExecutionStatusAborted,
		ExecutionStatusRejected,
		ExecutionStatusExpired,
		ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// IsAborted возвращает true для отменённого (или отменяемого) выполнения.
func (s ExecutionStatus) IsAborted() bool {
	return s == ExecutionStatusAborted || s == ExecutionStatusAborting
}

// executionStatuses — все известные статусы.
var executionStatuses = []ExecutionStatus{
	ExecutionStatusNew, ExecutionStatusQueued, ExecutionStatusStarting,
	ExecutionStatusRunning, ExecutionStatusPausing, ExecutionStatusPaused,
	ExecutionStatusWaiting, ExecutionStatusSuccess, ExecutionStatusFailed,
	ExecutionStatusError, ExecutionStatusAborting, ExecutionStatusAborted,
	ExecutionStatusRejected, ExecutionStatusExpired, ExecutionStatusSkipped,
}

// ParseExecutionStatus разбирает статус без учёта регистра.
func ParseExecutionStatus(s string) (ExecutionStatus, error) {
	upper := ExecutionStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range executionStatuses {
		if status == upper {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// String возвращает строковое представление ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// BarrierState — состояние barrier instance.
//
// Жизненный цикл:
//
//	STANDING → DOWN
type BarrierState string

const (
	// BarrierStateStanding — barrier ждёт участников.
	BarrierStateStanding BarrierState = "STANDING"

	// BarrierStateDown — все участники прибыли (или barrier снят принудительно).
	BarrierStateDown BarrierState = "DOWN"
)

// ReleaseReason — причина снятия barrier.
type ReleaseReason string

const (
	// ReleaseReasonAllArrived — прибыли все участники.
	ReleaseReasonAllArrived ReleaseReason = "ALL_ARRIVED"

	// ReleaseReasonAbandoned — pipeline execution отменён до прибытия всех участников.
	ReleaseReasonAbandoned ReleaseReason = "ABANDONED"
)
