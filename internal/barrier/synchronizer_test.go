package barrier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// --- Helpers ---

func barrierStep(id, identifier string) domain.Step {
	return domain.Step{
		ID:         id,
		Name:       "barrier " + identifier,
		Type:       domain.StepTypeBarrier,
		Properties: map[string]any{domain.PropertyIdentifier: identifier},
	}
}

// workflowWith строит workflow с одной фазой, по одному phase step на группу шагов.
func workflowWith(id string, phaseSteps ...[]domain.Step) *domain.Workflow {
	phase := domain.WorkflowPhase{ID: id + "-phase", Name: "Phase 1"}
	for i, steps := range phaseSteps {
		phase.PhaseSteps = append(phase.PhaseSteps, domain.PhaseStep{
			ID:    fmt.Sprintf("%s-ps%d", id, i),
			Name:  fmt.Sprintf("Step group %d", i),
			Steps: steps,
		})
	}
	return &domain.Workflow{
		ID:            id,
		Orchestration: &domain.OrchestrationWorkflow{Phases: []domain.WorkflowPhase{phase}},
	}
}

func info(wf *domain.Workflow, elementID string) domain.OrchestrationWorkflowInfo {
	return domain.OrchestrationWorkflowInfo{
		WorkflowID:             wf.ID,
		PipelineStageElementID: elementID,
		Workflow:               wf,
	}
}

// fakeNotifier запоминает уведомления о снятии.
type fakeNotifier struct {
	mu       sync.Mutex
	released []domain.BarrierParticipant
}

func (n *fakeNotifier) PublishBarrierReleased(_ context.Context, _ *domain.BarrierInstance, p domain.BarrierParticipant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.released = append(n.released, p)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.released)
}

// fakeWorkflows — WorkflowReader по map.
type fakeWorkflows map[string]*domain.Workflow

func (f fakeWorkflows) ReadWorkflow(_ context.Context, _, id string) (*domain.Workflow, error) {
	wf, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	return wf, nil
}

func newSynchronizer(store Store, notifier Notifier, workflows WorkflowReader) *Synchronizer {
	var seq int
	var mu sync.Mutex
	return New(Config{
		Store:        store,
		Workflows:    workflows,
		Notifier:     notifier,
		PollInterval: 5 * time.Millisecond,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("barrier-%d", seq)
		},
	})
}

// --- Discovery ---

func TestObtainInstances_NoSharedIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		infos []domain.OrchestrationWorkflowInfo
	}{
		{
			name: "single workflow with barrier",
			infos: []domain.OrchestrationWorkflowInfo{
				info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy")}), "el-1"),
			},
		},
		{
			name: "distinct identifiers",
			infos: []domain.OrchestrationWorkflowInfo{
				info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy1")}), "el-1"),
				info(workflowWith("wf-2", []domain.Step{barrierStep("s2", "deploy2")}), "el-2"),
			},
		},
		{
			name: "no barriers at all",
			infos: []domain.OrchestrationWorkflowInfo{
				info(workflowWith("wf-1", []domain.Step{{ID: "s1", Type: domain.StepTypeShellScript}}), "el-1"),
				{WorkflowID: "wf-2", PipelineStageElementID: "el-2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			s := newSynchronizer(store, nil, nil)

			got, err := s.ObtainInstances(context.Background(), "app", tt.infos, "pe-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no instances, got %d", len(got))
			}

			stored, _ := store.List(context.Background(), "pe-1")
			if len(stored) != 0 {
				t.Errorf("nothing should be persisted, got %d", len(stored))
			}
		})
	}
}

func TestObtainInstances_SharedIdentifier(t *testing.T) {
	s := newSynchronizer(NewMemoryStore(), nil, nil)

	infos := []domain.OrchestrationWorkflowInfo{
		info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy")}), "el-1"),
		info(workflowWith("wf-2", []domain.Step{barrierStep("s2", "deploy")}), "el-2"),
	}

	got, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(got))
	}

	inst := got[0]
	if inst.Name != "deploy" || inst.PipelineExecutionID != "pe-1" {
		t.Errorf("unexpected instance: name=%s execution=%s", inst.Name, inst.PipelineExecutionID)
	}
	if inst.State != domain.BarrierStateStanding {
		t.Errorf("expected STANDING, got %s", inst.State)
	}

	want := []domain.BarrierParticipant{
		{WorkflowID: "wf-1", PipelineStageElementID: "el-1"},
		{WorkflowID: "wf-2", PipelineStageElementID: "el-2"},
	}
	if len(inst.Participants) != 2 || inst.Participants[0] != want[0] || inst.Participants[1] != want[1] {
		t.Errorf("unexpected participants: %v", inst.Participants)
	}
}

func TestObtainInstances_SortedByName(t *testing.T) {
	s := newSynchronizer(NewMemoryStore(), nil, nil)

	infos := []domain.OrchestrationWorkflowInfo{
		info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "verify"), barrierStep("s2", "deploy")}), "el-1"),
		info(workflowWith("wf-2", []domain.Step{barrierStep("s3", "deploy")}, []domain.Step{barrierStep("s4", "verify")}), "el-2"),
	}

	got, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "deploy" || got[1].Name != "verify" {
		t.Errorf("expected [deploy verify], got %v", got)
	}
}

func TestObtainInstances_DuplicateWithinWorkflow(t *testing.T) {
	tests := []struct {
		name string
		wf   *domain.Workflow
	}{
		{
			name: "same phase step",
			wf:   workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy"), barrierStep("s2", "deploy")}),
		},
		{
			name: "different phase steps",
			wf:   workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy")}, []domain.Step{barrierStep("s2", "deploy")}),
		},
		{
			name: "different phases",
			wf: &domain.Workflow{
				ID: "wf-1",
				Orchestration: &domain.OrchestrationWorkflow{
					Phases: []domain.WorkflowPhase{
						{Name: "Phase 1", PhaseSteps: []domain.PhaseStep{{Name: "a", Steps: []domain.Step{barrierStep("s1", "deploy")}}}},
						{Name: "Phase 2", PhaseSteps: []domain.PhaseStep{{Name: "b", Steps: []domain.Step{barrierStep("s2", "deploy")}}}},
					},
				},
			},
		},
		{
			name: "pre and post deployment",
			wf: &domain.Workflow{
				ID: "wf-1",
				Orchestration: &domain.OrchestrationWorkflow{
					PreDeploymentSteps:  &domain.PhaseStep{Name: "pre", Steps: []domain.Step{barrierStep("s1", "deploy")}},
					PostDeploymentSteps: &domain.PhaseStep{Name: "post", Steps: []domain.Step{barrierStep("s2", "deploy")}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			s := newSynchronizer(store, nil, nil)

			infos := []domain.OrchestrationWorkflowInfo{
				info(tt.wf, "el-1"),
				info(workflowWith("wf-2", []domain.Step{barrierStep("s3", "deploy")}), "el-2"),
			}

			_, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
			if !errors.Is(err, ErrBarriersNotRunningConcurrently) {
				t.Fatalf("expected ErrBarriersNotRunningConcurrently, got %v", err)
			}

			var bErr *Error
			if !errors.As(err, &bErr) || bErr.Code != CodeBarriersNotRunningConcurrently {
				t.Fatalf("expected typed error with code, got %v", err)
			}

			stored, _ := store.List(context.Background(), "pe-1")
			if len(stored) != 0 {
				t.Error("configuration error must not persist instances")
			}
		})
	}
}

func TestObtainInstances_MissingIdentifier(t *testing.T) {
	s := newSynchronizer(NewMemoryStore(), nil, nil)

	infos := []domain.OrchestrationWorkflowInfo{
		info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "")}), "el-1"),
	}

	_, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
	if !errors.Is(err, ErrInvalidBarrierConfiguration) {
		t.Errorf("expected ErrInvalidBarrierConfiguration, got %v", err)
	}
	if errors.Is(err, ErrBarriersNotRunningConcurrently) {
		t.Error("codes must not match each other")
	}
}

func TestObtainInstances_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	s := newSynchronizer(store, nil, nil)

	infos := []domain.OrchestrationWorkflowInfo{
		info(workflowWith("wf-1", []domain.Step{barrierStep("s1", "deploy")}), "el-1"),
		info(workflowWith("wf-2", []domain.Step{barrierStep("s2", "deploy")}), "el-2"),
	}

	first, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := s.ObtainInstances(context.Background(), "app", infos, "pe-1")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first[0].ID != second[0].ID {
		t.Errorf("expected the same instance, got %s and %s", first[0].ID, second[0].ID)
	}

	stored, _ := store.List(context.Background(), "pe-1")
	if len(stored) != 1 {
		t.Errorf("expected 1 stored instance, got %d", len(stored))
	}

	// Другой pipeline execution получает свой instance
	other, err := s.ObtainInstances(context.Background(), "app", infos, "pe-2")
	if err != nil {
		t.Fatalf("other execution: %v", err)
	}
	if other[0].ID == first[0].ID {
		t.Error("instances must not be shared across executions")
	}
}

// --- ConstructBarriers ---

func TestConstructBarriers(t *testing.T) {
	workflows := fakeWorkflows{
		"wf-a": workflowWith("wf-a", []domain.Step{barrierStep("s1", "deploy")}),
		"wf-b": workflowWith("wf-b", []domain.Step{barrierStep("s2", "deploy")}),
		"wf-c": workflowWith("wf-c", []domain.Step{barrierStep("s3", "deploy")}),
	}

	env := func(id, name, wf string) domain.PipelineStageElement {
		return domain.PipelineStageElement{
			ID: id, Name: name, Type: domain.StateTypeEnvState,
			Properties: map[string]any{domain.PropertyWorkflowID: wf},
		}
	}

	t.Run("parallel stages share a barrier", func(t *testing.T) {
		disabled := env("e3", "C", "wf-c")
		disabled.Disabled = true

		p := &domain.Pipeline{
			AppID: "app",
			Stages: []domain.PipelineStage{
				{Name: "a", Elements: []domain.PipelineStageElement{env("e1", "A", "wf-a")}},
				{Name: "b", Parallel: true, Elements: []domain.PipelineStageElement{env("e2", "B", "wf-b"), disabled}},
				{Name: "gate", Elements: []domain.PipelineStageElement{{ID: "e4", Name: "OK", Type: domain.StateTypeApproval}}},
			},
		}

		s := newSynchronizer(NewMemoryStore(), nil, workflows)
		got, err := s.ConstructBarriers(context.Background(), p, "pe-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || len(got[0].Participants) != 2 {
			t.Fatalf("expected one barrier with two participants, got %+v", got)
		}
	})

	t.Run("sequential stages do not share a barrier", func(t *testing.T) {
		p := &domain.Pipeline{
			AppID: "app",
			Stages: []domain.PipelineStage{
				{Name: "a", Elements: []domain.PipelineStageElement{env("e1", "A", "wf-a")}},
				{Name: "b", Elements: []domain.PipelineStageElement{env("e2", "B", "wf-b")}},
			},
		}

		s := newSynchronizer(NewMemoryStore(), nil, workflows)
		got, err := s.ConstructBarriers(context.Background(), p, "pe-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no barriers, got %d", len(got))
		}
	})

	t.Run("same barrier in two groups", func(t *testing.T) {
		workflows := fakeWorkflows{
			"wf-a": workflows["wf-a"],
			"wf-b": workflows["wf-b"],
			"wf-c": workflows["wf-c"],
			"wf-d": workflowWith("wf-d", []domain.Step{barrierStep("s4", "deploy")}),
		}
		p := &domain.Pipeline{
			AppID: "app",
			Stages: []domain.PipelineStage{
				{Name: "a", Elements: []domain.PipelineStageElement{env("e1", "A", "wf-a"), env("e2", "B", "wf-b")}},
				{Name: "b", Elements: []domain.PipelineStageElement{env("e3", "C", "wf-c"), env("e4", "D", "wf-d")}},
			},
		}

		s := newSynchronizer(NewMemoryStore(), nil, workflows)
		_, err := s.ConstructBarriers(context.Background(), p, "pe-1")
		if !errors.Is(err, ErrBarriersNotRunningConcurrently) {
			t.Errorf("expected ErrBarriersNotRunningConcurrently, got %v", err)
		}
	})

	t.Run("workflow read failure", func(t *testing.T) {
		p := &domain.Pipeline{
			AppID:  "app",
			Stages: []domain.PipelineStage{{Name: "a", Elements: []domain.PipelineStageElement{env("e1", "A", "missing")}}},
		}

		s := newSynchronizer(NewMemoryStore(), nil, workflows)
		if _, err := s.ConstructBarriers(context.Background(), p, "pe-1"); err == nil {
			t.Error("expected error")
		}
	})
}

// --- Arrival ---

func setupBarrier(t *testing.T, store Store, n int) []domain.BarrierParticipant {
	t.Helper()

	participants := make([]domain.BarrierParticipant, n)
	for i := range participants {
		participants[i] = domain.BarrierParticipant{
			WorkflowID:             fmt.Sprintf("wf-%d", i),
			PipelineStageElementID: fmt.Sprintf("el-%d", i),
		}
	}

	_, _, err := store.Upsert(context.Background(), &domain.BarrierInstance{
		ID:                  "b-1",
		Name:                "deploy",
		PipelineExecutionID: "pe-1",
		Participants:        participants,
		State:               domain.BarrierStateStanding,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return participants
}

func TestArrive_NoInstance(t *testing.T) {
	s := newSynchronizer(NewMemoryStore(), nil, nil)

	got, err := s.Arrive(context.Background(), "pe-1", "deploy", domain.BarrierParticipant{WorkflowID: "wf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OutcomeProceed {
		t.Errorf("expected PROCEED, got %s", got)
	}
}

func TestArrive_LastArrivalReleases(t *testing.T) {
	store := NewMemoryStore()
	notifier := &fakeNotifier{}
	s := newSynchronizer(store, notifier, nil)
	participants := setupBarrier(t, store, 3)
	ctx := context.Background()

	for i, p := range participants[:2] {
		got, err := s.Arrive(ctx, "pe-1", "deploy", p)
		if err != nil {
			t.Fatalf("arrival %d: %v", i, err)
		}
		if got != OutcomeWait {
			t.Errorf("arrival %d: expected WAIT, got %s", i, got)
		}
	}

	// Повторное прибытие не учитывается
	got, err := s.Arrive(ctx, "pe-1", "deploy", participants[0])
	if err != nil || got != OutcomeWait {
		t.Fatalf("duplicate arrival: got %s, %v", got, err)
	}
	inst, _ := store.Get(ctx, "pe-1", "deploy")
	if len(inst.Arrived) != 2 || inst.IsDown() {
		t.Fatalf("duplicate arrival must be a no-op: %+v", inst)
	}
	if notifier.count() != 0 {
		t.Error("no release expected yet")
	}

	got, err = s.Arrive(ctx, "pe-1", "deploy", participants[2])
	if err != nil {
		t.Fatalf("last arrival: %v", err)
	}
	if got != OutcomeReleased {
		t.Errorf("expected RELEASED, got %s", got)
	}

	inst, _ = store.Get(ctx, "pe-1", "deploy")
	if !inst.IsDown() || inst.ReleaseReason != domain.ReleaseReasonAllArrived {
		t.Errorf("expected DOWN/ALL_ARRIVED, got %s/%s", inst.State, inst.ReleaseReason)
	}
	if notifier.count() != 3 {
		t.Errorf("expected release for every participant, got %d", notifier.count())
	}

	// После снятия участники проходят без ожидания
	got, err = s.Arrive(ctx, "pe-1", "deploy", participants[0])
	if err != nil || got != OutcomeProceed {
		t.Errorf("arrival after release: got %s, %v", got, err)
	}
	if notifier.count() != 3 {
		t.Error("release must be published at most once")
	}
}

func TestArrive_NotParticipant(t *testing.T) {
	store := NewMemoryStore()
	s := newSynchronizer(store, nil, nil)
	setupBarrier(t, store, 2)

	got, err := s.Arrive(context.Background(), "pe-1", "deploy", domain.BarrierParticipant{WorkflowID: "stranger"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OutcomeProceed {
		t.Errorf("expected PROCEED, got %s", got)
	}

	inst, _ := store.Get(context.Background(), "pe-1", "deploy")
	if inst.IsDown() || len(inst.Arrived) != 0 {
		t.Errorf("non-participant must not touch the barrier: %+v", inst)
	}
}

// Одиночный шаг с identifier, который в другой группе образует barrier,
// не должен ждать чужой barrier.
func TestArrive_LoneStepInLaterGroup(t *testing.T) {
	workflows := fakeWorkflows{
		"wf-a": workflowWith("wf-a", []domain.Step{barrierStep("s1", "deploy")}),
		"wf-b": workflowWith("wf-b", []domain.Step{barrierStep("s2", "deploy")}),
		"wf-c": workflowWith("wf-c", []domain.Step{barrierStep("s3", "deploy")}),
	}
	env := func(id, name, wf string) domain.PipelineStageElement {
		return domain.PipelineStageElement{
			ID: id, Name: name, Type: domain.StateTypeEnvState,
			Properties: map[string]any{domain.PropertyWorkflowID: wf},
		}
	}
	p := &domain.Pipeline{
		AppID: "app",
		Stages: []domain.PipelineStage{
			{Name: "first", Elements: []domain.PipelineStageElement{env("e1", "A", "wf-a"), env("e2", "B", "wf-b")}},
			{Name: "second", Elements: []domain.PipelineStageElement{env("e3", "C", "wf-c")}},
		},
	}

	store := NewMemoryStore()
	s := newSynchronizer(store, nil, workflows)
	ctx := context.Background()

	got, err := s.ConstructBarriers(ctx, p, "pe-1")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if len(got) != 1 || len(got[0].Participants) != 2 {
		t.Fatalf("expected one barrier for the first group, got %+v", got)
	}

	outcome, err := s.Arrive(ctx, "pe-1", "deploy", domain.BarrierParticipant{WorkflowID: "wf-c", PipelineStageElementID: "e3"})
	if err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if outcome != OutcomeProceed {
		t.Errorf("lone step must proceed, got %s", outcome)
	}

	inst, _ := store.Get(ctx, "pe-1", "deploy")
	if inst.IsDown() || len(inst.Arrived) != 0 {
		t.Errorf("first group barrier must stay untouched: %+v", inst)
	}
}

func TestArrive_Concurrent(t *testing.T) {
	const n = 16

	store := NewMemoryStore()
	notifier := &fakeNotifier{}
	s := newSynchronizer(store, notifier, nil)
	participants := setupBarrier(t, store, n)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		released int
		waiting  int
	)

	// Каждый участник прибывает дважды
	for _, p := range append(participants, participants...) {
		wg.Add(1)
		go func(p domain.BarrierParticipant) {
			defer wg.Done()
			got, err := s.Arrive(context.Background(), "pe-1", "deploy", p)
			if err != nil {
				t.Errorf("arrive: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch got {
			case OutcomeReleased:
				released++
			case OutcomeWait:
				waiting++
			}
		}(p)
	}
	wg.Wait()

	if released != 1 {
		t.Errorf("exactly one arrival must release, got %d", released)
	}
	if notifier.count() != n {
		t.Errorf("expected %d release notifications, got %d", n, notifier.count())
	}

	inst, _ := store.Get(context.Background(), "pe-1", "deploy")
	if len(inst.Arrived) != n {
		t.Errorf("expected %d arrivals, got %d", n, len(inst.Arrived))
	}
}

// --- Abandonment ---

func TestAbandon(t *testing.T) {
	store := NewMemoryStore()
	notifier := &fakeNotifier{}
	s := newSynchronizer(store, notifier, nil)
	participants := setupBarrier(t, store, 2)
	ctx := context.Background()

	if _, err := s.Arrive(ctx, "pe-1", "deploy", participants[0]); err != nil {
		t.Fatalf("arrive: %v", err)
	}

	n, err := s.Abandon(ctx, "pe-1")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 released barrier, got %d", n)
	}

	inst, _ := store.Get(ctx, "pe-1", "deploy")
	if !inst.IsDown() || inst.ReleaseReason != domain.ReleaseReasonAbandoned {
		t.Errorf("expected DOWN/ABANDONED, got %s/%s", inst.State, inst.ReleaseReason)
	}
	if notifier.count() != 2 {
		t.Errorf("every participant must be released, got %d", notifier.count())
	}

	// Повторная отмена ничего не делает
	n, err = s.Abandon(ctx, "pe-1")
	if err != nil || n != 0 {
		t.Errorf("second abandon: n=%d err=%v", n, err)
	}

	// Опоздавший участник не ждёт
	got, err := s.Arrive(ctx, "pe-1", "deploy", participants[1])
	if err != nil || got != OutcomeProceed {
		t.Errorf("late arrival: got %s, %v", got, err)
	}
}

// --- Wait ---

func TestWait_ReturnsOnRelease(t *testing.T) {
	store := NewMemoryStore()
	s := newSynchronizer(store, nil, nil)
	participants := setupBarrier(t, store, 2)
	ctx := context.Background()

	if _, err := s.Arrive(ctx, "pe-1", "deploy", participants[0]); err != nil {
		t.Fatalf("arrive: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Wait(ctx, "pe-1", "deploy")
	}()

	select {
	case err := <-done:
		t.Fatalf("wait returned before release: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := s.Arrive(ctx, "pe-1", "deploy", participants[1]); err != nil {
		t.Fatalf("arrive: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after release")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	s := newSynchronizer(store, nil, nil)
	setupBarrier(t, store, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Wait(ctx, "pe-1", "deploy"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWait_NoInstance(t *testing.T) {
	s := newSynchronizer(NewMemoryStore(), nil, nil)

	if err := s.Wait(context.Background(), "pe-1", "deploy"); err != nil {
		t.Errorf("missing barrier should not block, got %v", err)
	}
}
