package engine

import (
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// StateTypeFork — структурный узел, разветвляющий первую группу параллельных элементов.
// Не соответствует ни одному элементу pipeline.
const StateTypeFork domain.StateType = "FORK"

// forkStateName — имя fork-узла.
const forkStateName = "__fork__"

// StageGroup — группа элементов, выполняющихся одновременно.
//
// Непараллельная стадия открывает новую группу,
// параллельная присоединяется к текущей.
type StageGroup struct {
	// Stages — имена стадий группы.
	Stages []string

	// Elements — элементы группы в порядке объявления.
	Elements []domain.PipelineStageElement
}

// ConcurrentGroups разбивает стадии pipeline на группы одновременно выполняющихся элементов.
func ConcurrentGroups(p *domain.Pipeline) []StageGroup {
	var groups []StageGroup

	for _, stage := range p.Stages {
		if !stage.Parallel || len(groups) == 0 {
			groups = append(groups, StageGroup{})
		}
		g := &groups[len(groups)-1]
		g.Stages = append(g.Stages, stage.Name)
		g.Elements = append(g.Elements, stage.Elements...)
	}

	return groups
}

// CompilePipeline компилирует pipeline в StateMachine.
//
// Каждый элемент становится одним State (в порядке объявления).
// Группы соединяются SUCCESS переходами "каждый с каждым".
// Если первая группа содержит несколько элементов, перед ней добавляется FORK узел.
func CompilePipeline(p *domain.Pipeline, stateMachineID string) (*domain.StateMachine, error) {
	if err := ValidatePipeline(p); err != nil {
		return nil, err
	}

	sm := domain.NewStateMachine(stateMachineID, p.ID)
	groups := ConcurrentGroups(p)

	if len(groups[0].Elements) > 1 {
		if err := sm.AddState(domain.State{Name: forkStateName, Type: StateTypeFork}); err != nil {
			return nil, err
		}
	}

	for _, g := range groups {
		for _, el := range g.Elements {
			if err := sm.AddState(elementState(el)); err != nil {
				return nil, err
			}
		}
	}

	var prev []string
	if sm.InitialStateName == forkStateName {
		prev = []string{forkStateName}
	}

	for _, g := range groups {
		current := make([]string, 0, len(g.Elements))
		for _, el := range g.Elements {
			for _, from := range prev {
				if err := sm.AddTransition(from, el.Name, domain.TransitionTypeSuccess); err != nil {
					return nil, err
				}
			}
			current = append(current, el.Name)
		}
		prev = current
	}

	if problems := sm.ValidationErrors(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStateMachine, problems)
	}

	return sm, nil
}

// elementState строит State для элемента pipeline.
func elementState(el domain.PipelineStageElement) domain.State {
	props := make(map[string]any, len(el.Properties)+2)
	for k, v := range el.Properties {
		props[k] = v
	}
	props["elementId"] = el.ID
	if el.Disabled {
		props[domain.PropertyDisabled] = true
	}

	return domain.State{
		Name:       el.Name,
		Type:       el.Type,
		Properties: props,
	}
}

// IsStructural возвращает true для узлов, которые не соответствуют элементам pipeline.
func IsStructural(s domain.State) bool {
	return s.Type == StateTypeFork
}
