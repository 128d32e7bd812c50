package domain

// StepType — тип шага workflow.
//
// Набор типов открыт: неизвестные типы сохраняются как есть
// и доступны через Step.Property.
type StepType string

// Известные типы шагов.
const (
	StepTypeBarrier     StepType = "BARRIER"
	StepTypeApproval    StepType = "APPROVAL"
	StepTypeShellScript StepType = "SHELL_SCRIPT"
	StepTypeHTTP        StepType = "HTTP"
)

// Свойства шагов.
const (
	// PropertyIdentifier — идентификатор barrier.
	PropertyIdentifier = "identifier"

	// PropertyTimeoutMillis — таймаут шага в миллисекундах.
	PropertyTimeoutMillis = "timeoutMillis"

	// PropertyUserGroups — группы пользователей для approval.
	PropertyUserGroups = "userGroups"
)

// Workflow — процедура развёртывания: фазы → phase steps → steps.
type Workflow struct {
	ID    string `json:"id" yaml:"id"`
	AppID string `json:"app_id" yaml:"app_id"`
	Name  string `json:"name" yaml:"name"`

	// Orchestration — структура workflow. Nil для workflow без оркестрации.
	Orchestration *OrchestrationWorkflow `json:"orchestration,omitempty" yaml:"orchestration,omitempty"`
}

// OrchestrationWorkflowInfo — workflow элемента pipeline, передаваемый в поиск barrier.
type OrchestrationWorkflowInfo struct {
	WorkflowID             string
	PipelineStageElementID string
	Workflow               *Workflow
}

// OrchestrationWorkflow — структурное разбиение workflow.
type OrchestrationWorkflow struct {
	// PreDeploymentSteps — шаги до фаз.
	PreDeploymentSteps *PhaseStep `json:"pre_deployment_steps,omitempty" yaml:"pre_deployment_steps,omitempty"`

	// Phases — фазы развёртывания.
	Phases []WorkflowPhase `json:"phases,omitempty" yaml:"phases,omitempty"`

	// PostDeploymentSteps — шаги после фаз.
	PostDeploymentSteps *PhaseStep `json:"post_deployment_steps,omitempty" yaml:"post_deployment_steps,omitempty"`
}

// WorkflowPhase — фаза workflow.
type WorkflowPhase struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	PhaseSteps []PhaseStep `json:"phase_steps,omitempty" yaml:"phase_steps,omitempty"`
}

// PhaseStep — группа шагов внутри фазы.
type PhaseStep struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Step — шаг workflow: tagged union по Type.
//
// Для известных типов есть типизированные accessor'ы (Barrier, Approval),
// для остальных — Property.
type Step struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       StepType       `json:"type" yaml:"type"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// BarrierStep — типизированное представление шага BARRIER.
type BarrierStep struct {
	// Identifier — имя точки синхронизации. Обязательно.
	Identifier string

	// TimeoutMillis — таймаут ожидания (0 — по умолчанию).
	TimeoutMillis int64
}

// ApprovalStep — типизированное представление шага APPROVAL.
type ApprovalStep struct {
	UserGroups    []string
	TimeoutMillis int64
}

// Property возвращает произвольное свойство шага.
func (s *Step) Property(key string) (any, bool) {
	v, ok := s.Properties[key]
	return v, ok
}

// Barrier возвращает BarrierStep, если шаг — barrier.
func (s *Step) Barrier() (BarrierStep, bool) {
	if s.Type != StepTypeBarrier {
		return BarrierStep{}, false
	}
	return BarrierStep{
		Identifier:    propertyString(s.Properties, PropertyIdentifier),
		TimeoutMillis: propertyInt64(s.Properties, PropertyTimeoutMillis),
	}, true
}

// Approval возвращает ApprovalStep, если шаг — approval.
func (s *Step) Approval() (ApprovalStep, bool) {
	if s.Type != StepTypeApproval {
		return ApprovalStep{}, false
	}
	return ApprovalStep{
		UserGroups:    propertyStrings(s.Properties, PropertyUserGroups),
		TimeoutMillis: propertyInt64(s.Properties, PropertyTimeoutMillis),
	}, true
}

// StepLocation — положение шага внутри workflow.
type StepLocation struct {
	PhaseName     string
	PhaseStepName string
	Step          *Step
}

// AllSteps возвращает все шаги workflow в порядке обхода:
// pre-deployment, фазы, post-deployment.
func (o *OrchestrationWorkflow) AllSteps() []StepLocation {
	if o == nil {
		return nil
	}

	var out []StepLocation
	appendPhaseStep := func(phaseName string, ps *PhaseStep) {
		for i := range ps.Steps {
			out = append(out, StepLocation{
				PhaseName:     phaseName,
				PhaseStepName: ps.Name,
				Step:          &ps.Steps[i],
			})
		}
	}

	if o.PreDeploymentSteps != nil {
		appendPhaseStep("", o.PreDeploymentSteps)
	}
	for i := range o.Phases {
		phase := &o.Phases[i]
		for j := range phase.PhaseSteps {
			appendPhaseStep(phase.Name, &phase.PhaseSteps[j])
		}
	}
	if o.PostDeploymentSteps != nil {
		appendPhaseStep("", o.PostDeploymentSteps)
	}

	return out
}

func propertyString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propertyInt64(props map[string]any, key string) int64 {
	switch n := props[key].(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func propertyStrings(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
