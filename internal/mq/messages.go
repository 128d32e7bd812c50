package mq

import (
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTransition      MessageType = "execution.transition"
	MessageTypePipelineStarted MessageType = "pipeline.started"
	MessageTypePipelineAborted MessageType = "pipeline.aborted"
	MessageTypeBarrierArrival  MessageType = "barrier.arrival"
	MessageTypeBarrierReleased MessageType = "barrier.released"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TransitionPayload — уведомление о переходе state внутри workflow execution.
type TransitionPayload struct {
	AppID               string                 `json:"app_id"`
	WorkflowExecutionID string                 `json:"workflow_execution_id"`
	StateName           string                 `json:"state_name,omitempty"`
	Status              domain.ExecutionStatus `json:"status,omitempty"`
}

// PipelineStartedPayload — pipeline execution запущен.
type PipelineStartedPayload struct {
	AppID               string `json:"app_id"`
	PipelineID          string `json:"pipeline_id"`
	PipelineExecutionID string `json:"pipeline_execution_id"`
	WorkflowExecutionID string `json:"workflow_execution_id"`
}

// PipelineAbortedPayload — pipeline execution отменён.
type PipelineAbortedPayload struct {
	AppID               string `json:"app_id"`
	PipelineExecutionID string `json:"pipeline_execution_id"`
	WorkflowExecutionID string `json:"workflow_execution_id,omitempty"`
}

// BarrierArrivalPayload — участник дошёл до barrier шага.
type BarrierArrivalPayload struct {
	PipelineExecutionID    string `json:"pipeline_execution_id"`
	Identifier             string `json:"identifier"`
	WorkflowID             string `json:"workflow_id"`
	PipelineStageElementID string `json:"pipeline_stage_element_id"`
}

// Participant возвращает участника barrier.
func (p BarrierArrivalPayload) Participant() domain.BarrierParticipant {
	return domain.BarrierParticipant{
		WorkflowID:             p.WorkflowID,
		PipelineStageElementID: p.PipelineStageElementID,
	}
}

// BarrierReleasedPayload — barrier снят, участник может продолжать.
type BarrierReleasedPayload struct {
	PipelineExecutionID    string               `json:"pipeline_execution_id"`
	Identifier             string               `json:"identifier"`
	WorkflowID             string               `json:"workflow_id"`
	PipelineStageElementID string               `json:"pipeline_stage_element_id"`
	Reason                 domain.ReleaseReason `json:"reason,omitempty"`
}
