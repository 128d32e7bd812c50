package domain

import (
	"errors"
	"fmt"
)

// Ошибки построения графа состояний.
var (
	// ErrDuplicateState — state с таким именем уже есть в графе.
	ErrDuplicateState = errors.New("duplicate state name")

	// ErrUnknownState — transition ссылается на несуществующий state.
	ErrUnknownState = errors.New("unknown state")
)

// StateType — тип узла графа.
type StateType string

// Известные типы state.
const (
	// StateTypeEnvState — стадия pipeline, запускающая workflow.
	StateTypeEnvState StateType = "ENV_STATE"

	// StateTypeApproval — ручное подтверждение.
	StateTypeApproval StateType = "APPROVAL"

	// StateTypeBarrier — точка синхронизации внутри workflow.
	StateTypeBarrier StateType = "BARRIER"
)

// TransitionType — тип перехода между state.
type TransitionType string

// Известные типы переходов.
const (
	TransitionTypeSuccess TransitionType = "SUCCESS"
	TransitionTypeFailure TransitionType = "FAILURE"
)

// State — узел графа.
type State struct {
	// Name — уникальное имя state в рамках StateMachine.
	// Для pipeline совпадает с именем PipelineStageElement.
	Name string `json:"name"`

	// Type — тип state.
	Type StateType `json:"type"`

	// Properties — произвольные свойства (зависят от типа).
	Properties map[string]any `json:"properties,omitempty"`
}

// Transition — направленное ребро графа.
type Transition struct {
	FromState      string         `json:"from_state"`
	ToState        string         `json:"to_state"`
	TransitionType TransitionType `json:"transition_type"`
}

// StateMachine — граф состояний, общий для workflow и pipeline.
//
// StateMachine только описывает структуру; выполнение графа
// происходит во внешнем execution engine.
// Циклы и обратные переходы допустимы и не проверяются.
type StateMachine struct {
	// ID — идентификатор версии графа.
	ID string `json:"id"`

	// OriginID — ID pipeline или workflow, из которого граф построен.
	OriginID string `json:"origin_id"`

	// InitialStateName — имя начального state.
	InitialStateName string `json:"initial_state_name"`

	// States — узлы в порядке объявления.
	States []State `json:"states"`

	// Transitions — рёбра.
	Transitions []Transition `json:"transitions"`
}

// NewStateMachine создаёт пустой граф.
func NewStateMachine(id, originID string) *StateMachine {
	return &StateMachine{
		ID:       id,
		OriginID: originID,
	}
}

// AddState добавляет state в граф.
// Первый добавленный state становится начальным, если начальный ещё не задан.
func (sm *StateMachine) AddState(state State) error {
	if sm.State(state.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateState, state.Name)
	}
	sm.States = append(sm.States, state)
	if sm.InitialStateName == "" {
		sm.InitialStateName = state.Name
	}
	return nil
}

// AddTransition добавляет переход между существующими state.
func (sm *StateMachine) AddTransition(from, to string, transitionType TransitionType) error {
	if sm.State(from) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, from)
	}
	if sm.State(to) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, to)
	}
	sm.Transitions = append(sm.Transitions, Transition{
		FromState:      from,
		ToState:        to,
		TransitionType: transitionType,
	})
	return nil
}

// State возвращает state по имени или nil.
func (sm *StateMachine) State(name string) *State {
	for i := range sm.States {
		if sm.States[i].Name == name {
			return &sm.States[i]
		}
	}
	return nil
}

// Validate проверяет инварианты графа:
//   - начальный state существует;
//   - у каждого state, кроме начального, есть хотя бы один входящий переход.
func (sm *StateMachine) Validate() bool {
	return len(sm.ValidationErrors()) == 0
}

// ValidationErrors возвращает список нарушений инвариантов графа.
func (sm *StateMachine) ValidationErrors() []string {
	var problems []string

	if sm.State(sm.InitialStateName) == nil {
		problems = append(problems, fmt.Sprintf("initial state %q not found", sm.InitialStateName))
	}

	incoming := make(map[string]int, len(sm.States))
	for _, t := range sm.Transitions {
		incoming[t.ToState]++
	}

	for _, s := range sm.States {
		if s.Name == sm.InitialStateName {
			continue
		}
		if incoming[s.Name] == 0 {
			problems = append(problems, fmt.Sprintf("state %q has no incoming transitions", s.Name))
		}
	}

	return problems
}

// OrderedStates возвращает state в порядке объявления.
func (sm *StateMachine) OrderedStates() []State {
	out := make([]State, len(sm.States))
	copy(out, sm.States)
	return out
}
