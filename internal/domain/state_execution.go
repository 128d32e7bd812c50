package domain

import (
	"time"
)

// Ключи ExecutionData.
const (
	// DataWorkflowExecutionID — ID вложенного workflow execution (ENV_STATE).
	DataWorkflowExecutionID = "workflowExecutionId"

	// DataErrorMsg — сообщение об ошибке вложенного выполнения.
	DataErrorMsg = "errorMsg"
)

// StateExecutionInstance — запись runtime о выполнении одного state.
//
// Создаётся и обновляется внешним execution engine;
// здесь только читается.
type StateExecutionInstance struct {
	// ID — уникальный идентификатор.
	ID string `json:"id"`

	// AppID — приложение.
	AppID string `json:"app_id"`

	// ExecutionID — workflow execution, которому принадлежит запись.
	ExecutionID string `json:"execution_id"`

	// StateName — имя state в StateMachine.
	StateName string `json:"state_name"`

	// StateType — тип state.
	StateType StateType `json:"state_type"`

	// Status — статус выполнения state.
	Status ExecutionStatus `json:"status"`

	// ExecutionData — данные выполнения (зависят от типа).
	ExecutionData map[string]any `json:"execution_data,omitempty"`

	// StartedAt / FinishedAt — время выполнения.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NestedWorkflowExecutionID возвращает ID вложенного workflow execution (для ENV_STATE).
func (s *StateExecutionInstance) NestedWorkflowExecutionID() string {
	return propertyString(s.ExecutionData, DataWorkflowExecutionID)
}

// ErrorMessage возвращает сообщение об ошибке из ExecutionData.
func (s *StateExecutionInstance) ErrorMessage() string {
	return propertyString(s.ExecutionData, DataErrorMsg)
}
