package reconciler

import (
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Snapshot — результат проекции: общий статус и статусы элементов.
type Snapshot struct {
	Status          domain.ExecutionStatus
	StageExecutions []domain.PipelineStageExecution
}

// Project строит проекцию pipeline execution.
//
// Чистая функция: для одинаковых входных данных возвращает одинаковый результат.
// nested — вложенные workflow executions по ID (для ENV_STATE).
//
// Для каждого state в порядке объявления:
//   - ENV_STATE: статус вложенного выполнения (или статус instance, если вложенного нет);
//   - остальные найденные: статус instance;
//   - не найденные: QUEUED.
func Project(
	sm *domain.StateMachine,
	instances []domain.StateExecutionInstance,
	enclosing *domain.WorkflowExecution,
	nested map[string]domain.WorkflowExecution,
) Snapshot {
	byName := latestByState(instances)

	stages := make([]domain.PipelineStageExecution, 0, len(sm.States))
	for _, state := range sm.OrderedStates() {
		if engine.IsStructural(state) {
			continue
		}

		stage := domain.PipelineStageExecution{
			StageElementName: state.Name,
			StateType:        state.Type,
		}

		inst, ok := byName[state.Name]
		if !ok {
			stage.Status = domain.ExecutionStatusQueued
			stages = append(stages, stage)
			continue
		}

		stage.Status = inst.Status
		stage.StartedAt = inst.StartedAt
		stage.FinishedAt = inst.FinishedAt

		if state.Type == domain.StateTypeEnvState {
			if we, found := nested[inst.NestedWorkflowExecutionID()]; found {
				stage.Status = we.Status
				stage.WorkflowExecutions = []domain.WorkflowExecution{we}
			}
			stage.Message = inst.ErrorMessage()
		}

		stages = append(stages, stage)
	}

	var status domain.ExecutionStatus
	if enclosing != nil {
		status = enclosing.Status
	}

	return Snapshot{Status: status, StageExecutions: stages}
}

// latestByState индексирует instances по имени state.
// При повторах (retry) побеждает самый поздний по CreatedAt.
func latestByState(instances []domain.StateExecutionInstance) map[string]*domain.StateExecutionInstance {
	out := make(map[string]*domain.StateExecutionInstance, len(instances))
	for i := range instances {
		inst := &instances[i]
		prev, ok := out[inst.StateName]
		if ok && prev.CreatedAt.After(inst.CreatedAt) {
			continue
		}
		out[inst.StateName] = inst
	}
	return out
}

// nestedExecutionIDs возвращает ID вложенных workflow executions,
// на которые ссылаются ENV_STATE instances графа (без повторов, в порядке объявления).
func nestedExecutionIDs(sm *domain.StateMachine, instances []domain.StateExecutionInstance) []string {
	byName := latestByState(instances)

	var ids []string
	seen := make(map[string]bool)
	for _, state := range sm.States {
		if state.Type != domain.StateTypeEnvState {
			continue
		}
		inst, ok := byName[state.Name]
		if !ok {
			continue
		}
		id := inst.NestedWorkflowExecutionID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
