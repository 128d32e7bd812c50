package domain

import (
	"time"
)

// BarrierParticipant — участник barrier: workflow внутри элемента pipeline.
type BarrierParticipant struct {
	WorkflowID             string `json:"workflow_id"`
	PipelineStageElementID string `json:"pipeline_stage_element_id"`
}

// BarrierInstance — точка синхронизации внутри одного pipeline execution.
//
// Создаётся один раз на пару (Name, PipelineExecutionID).
// Participants после создания не меняются; Arrived меняется только
// атомарным обновлением в хранилище.
type BarrierInstance struct {
	// ID — уникальный идентификатор.
	ID string `json:"id"`

	// Name — identifier barrier шагов.
	Name string `json:"name"`

	// AppID — приложение.
	AppID string `json:"app_id"`

	// PipelineExecutionID — pipeline execution, к которому привязан barrier.
	PipelineExecutionID string `json:"pipeline_execution_id"`

	// Participants — все участники.
	Participants []BarrierParticipant `json:"participants"`

	// Arrived — участники, уже дошедшие до barrier (подмножество Participants).
	Arrived []BarrierParticipant `json:"arrived"`

	// State — STANDING или DOWN.
	State BarrierState `json:"state"`

	// ReleaseReason — почему barrier снят (пусто, пока STANDING).
	ReleaseReason ReleaseReason `json:"release_reason,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// ReleasedAt — время перехода в DOWN.
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// HasParticipant проверяет, зарегистрирован ли участник.
func (b *BarrierInstance) HasParticipant(p BarrierParticipant) bool {
	return containsParticipant(b.Participants, p)
}

// HasArrived проверяет, прибыл ли участник.
func (b *BarrierInstance) HasArrived(p BarrierParticipant) bool {
	return containsParticipant(b.Arrived, p)
}

// IsComplete возвращает true, если прибыли все участники.
func (b *BarrierInstance) IsComplete() bool {
	for _, p := range b.Participants {
		if !b.HasArrived(p) {
			return false
		}
	}
	return true
}

// IsDown возвращает true, если barrier снят.
func (b *BarrierInstance) IsDown() bool {
	return b.State == BarrierStateDown
}

// Pending возвращает участников, которые ещё не прибыли.
func (b *BarrierInstance) Pending() []BarrierParticipant {
	var out []BarrierParticipant
	for _, p := range b.Participants {
		if !b.HasArrived(p) {
			out = append(out, p)
		}
	}
	return out
}

func containsParticipant(list []BarrierParticipant, p BarrierParticipant) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}
