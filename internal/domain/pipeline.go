package domain

import (
	"time"
)

// Свойства PipelineStageElement.
const (
	// PropertyWorkflowID — ID workflow, который запускает ENV_STATE элемент.
	PropertyWorkflowID = "workflowId"

	// PropertyDisabled — элемент выключен и не выполняется.
	PropertyDisabled = "disabled"
)

// Pipeline — определение pipeline: упорядоченные стадии.
//
// Стадии выполняются последовательно; стадия с Parallel=true
// выполняется параллельно с предыдущей.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID string `json:"id" yaml:"id"`

	// AppID — приложение, которому принадлежит pipeline.
	AppID string `json:"app_id" yaml:"app_id"`

	// Name — имя pipeline.
	Name string `json:"name" yaml:"name"`

	// Stages — стадии в порядке объявления.
	Stages []PipelineStage `json:"stages" yaml:"stages"`
}

// PipelineStage — одна стадия pipeline.
type PipelineStage struct {
	// Name — имя стадии.
	Name string `json:"name" yaml:"name"`

	// Parallel — стадия выполняется вместе с предыдущей.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// Elements — элементы стадии (выполняются параллельно).
	Elements []PipelineStageElement `json:"elements" yaml:"elements"`
}

// PipelineStageElement — адресуемая единица pipeline.
// Компилируется ровно в один State.
type PipelineStageElement struct {
	// ID — уникальный идентификатор элемента.
	ID string `json:"id" yaml:"id"`

	// Name — имя элемента; совпадает с именем State.
	Name string `json:"name" yaml:"name"`

	// Type — ENV_STATE или APPROVAL.
	Type StateType `json:"type" yaml:"type"`

	// Properties — свойства элемента (workflowId и т.д.).
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Disabled — элемент выключен.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// WorkflowID возвращает ID workflow для ENV_STATE элемента.
func (e *PipelineStageElement) WorkflowID() string {
	if v, ok := e.Properties[PropertyWorkflowID].(string); ok {
		return v
	}
	return ""
}

// Elements возвращает все элементы pipeline в порядке объявления.
func (p *Pipeline) Elements() []PipelineStageElement {
	var out []PipelineStageElement
	for _, stage := range p.Stages {
		out = append(out, stage.Elements...)
	}
	return out
}

// WorkflowExecution — проекция выполнения workflow (только статус, без графа).
type WorkflowExecution struct {
	ID         string          `json:"id"`
	AppID      string          `json:"app_id"`
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name,omitempty"`
	Status     ExecutionStatus `json:"status"`
}

// PipelineExecution — выполнение pipeline.
//
// StageExecutions — производные данные: заменяются целиком при каждом refresh
// и никогда не редактируются вручную.
type PipelineExecution struct {
	// ID — уникальный идентификатор pipeline execution.
	ID string `json:"id"`

	// AppID — приложение.
	AppID string `json:"app_id"`

	// PipelineID — ссылка на pipeline.
	PipelineID string `json:"pipeline_id"`

	// WorkflowExecutionID — workflow execution, выполняющий граф pipeline.
	WorkflowExecutionID string `json:"workflow_execution_id"`

	// Status — общий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// StageExecutions — статусы элементов в порядке объявления.
	StageExecutions []PipelineStageExecution `json:"stage_executions"`

	// UpdatedAt — время последнего refresh.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если pipeline execution завершён.
func (p *PipelineExecution) IsFinished() bool {
	return p.Status.IsTerminal()
}

// PipelineStageExecution — статус одного элемента pipeline.
type PipelineStageExecution struct {
	// StageElementName — имя элемента (и State).
	StageElementName string `json:"stage_element_name"`

	// StateType — тип элемента.
	StateType StateType `json:"state_type"`

	// Status — статус элемента; всегда определён.
	Status ExecutionStatus `json:"status"`

	// WorkflowExecutions — вложенные выполнения (только для ENV_STATE).
	WorkflowExecutions []WorkflowExecution `json:"workflow_executions,omitempty"`

	// StartedAt / FinishedAt — время выполнения элемента.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Message — сообщение об ошибке вложенного выполнения.
	Message string `json:"message,omitempty"`
}
