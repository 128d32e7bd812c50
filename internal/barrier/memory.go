package barrier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// MemoryStore — Store в памяти процесса.
// Используется для офлайн-проверки определений и в тестах.
type MemoryStore struct {
	mu        sync.Mutex
	instances map[memoryKey]*domain.BarrierInstance
	now       func() time.Time
}

type memoryKey struct {
	pipelineExecutionID string
	name                string
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[memoryKey]*domain.BarrierInstance),
		now:       time.Now,
	}
}

// Upsert реализует Store.
func (s *MemoryStore) Upsert(_ context.Context, inst *domain.BarrierInstance) (*domain.BarrierInstance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{inst.PipelineExecutionID, inst.Name}
	if existing, ok := s.instances[key]; ok {
		return cloneInstance(existing), false, nil
	}

	stored := cloneInstance(inst)
	if stored.State == "" {
		stored.State = domain.BarrierStateStanding
	}
	s.instances[key] = stored
	return cloneInstance(stored), true, nil
}

// Get реализует Store.
func (s *MemoryStore) Get(_ context.Context, pipelineExecutionID, name string) (*domain.BarrierInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[memoryKey{pipelineExecutionID, name}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneInstance(inst), nil
}

// List реализует Store.
func (s *MemoryStore) List(_ context.Context, pipelineExecutionID string) ([]domain.BarrierInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.BarrierInstance
	for key, inst := range s.instances {
		if key.pipelineExecutionID == pipelineExecutionID {
			out = append(out, *cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Arrive реализует Store.
func (s *MemoryStore) Arrive(_ context.Context, pipelineExecutionID, name string, p domain.BarrierParticipant) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[memoryKey{pipelineExecutionID, name}]
	if !ok {
		return false, false, repo.ErrNotFound
	}
	if inst.IsDown() || !inst.HasParticipant(p) || inst.HasArrived(p) {
		return false, false, nil
	}

	inst.Arrived = append(inst.Arrived, p)
	if !inst.IsComplete() {
		return true, false, nil
	}

	s.markDown(inst, domain.ReleaseReasonAllArrived)
	return true, true, nil
}

// Release реализует Store.
func (s *MemoryStore) Release(_ context.Context, pipelineExecutionID, name string, reason domain.ReleaseReason) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[memoryKey{pipelineExecutionID, name}]
	if !ok {
		return false, repo.ErrNotFound
	}
	if inst.IsDown() {
		return false, nil
	}

	s.markDown(inst, reason)
	return true, nil
}

func (s *MemoryStore) markDown(inst *domain.BarrierInstance, reason domain.ReleaseReason) {
	now := s.now()
	inst.State = domain.BarrierStateDown
	inst.ReleaseReason = reason
	inst.ReleasedAt = &now
}

func cloneInstance(inst *domain.BarrierInstance) *domain.BarrierInstance {
	cp := *inst
	cp.Participants = append([]domain.BarrierParticipant(nil), inst.Participants...)
	cp.Arrived = append([]domain.BarrierParticipant(nil), inst.Arrived...)
	if inst.ReleasedAt != nil {
		t := *inst.ReleasedAt
		cp.ReleasedAt = &t
	}
	return &cp
}
