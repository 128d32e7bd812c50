package barrier

import (
	"context"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Store — хранилище barrier instances.
//
// Instance адресуется парой (name, pipelineExecutionID).
// Отсутствующий instance — repo.ErrNotFound.
type Store interface {
	// Upsert создаёт instance, если его ещё нет.
	// Возвращает сохранённый instance и признак создания.
	Upsert(ctx context.Context, inst *domain.BarrierInstance) (*domain.BarrierInstance, bool, error)

	// Get возвращает instance.
	Get(ctx context.Context, pipelineExecutionID, name string) (*domain.BarrierInstance, error)

	// List возвращает все instances pipeline execution, упорядоченные по имени.
	List(ctx context.Context, pipelineExecutionID string) ([]domain.BarrierInstance, error)

	// Arrive атомарно добавляет участника в arrived.
	//
	// Обновление применяется, только если instance STANDING, участник
	// зарегистрирован и ещё не прибыл. Если после обновления прибыли все,
	// instance переходит в DOWN в том же обновлении.
	// applied — обновление применено; released — этот вызов перевёл instance в DOWN.
	Arrive(ctx context.Context, pipelineExecutionID, name string, p domain.BarrierParticipant) (applied, released bool, err error)

	// Release атомарно переводит STANDING instance в DOWN.
	// Возвращает true, если переход выполнил этот вызов.
	Release(ctx context.Context, pipelineExecutionID, name string, reason domain.ReleaseReason) (bool, error)
}

// WorkflowReader — чтение определений workflow.
type WorkflowReader interface {
	ReadWorkflow(ctx context.Context, appID, workflowID string) (*domain.Workflow, error)
}

// Notifier — доставка уведомлений о снятии barrier.
type Notifier interface {
	// PublishBarrierReleased уведомляет участника о снятии barrier.
	PublishBarrierReleased(ctx context.Context, inst *domain.BarrierInstance, participant domain.BarrierParticipant) error
}
