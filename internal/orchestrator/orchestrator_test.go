package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// --- Fakes ---

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, _, workflowExecutionID string) error {
	f.calls = append(f.calls, workflowExecutionID)
	return f.err
}

type fakeBarriers struct {
	constructed []string
	constructErr error

	outcome   barrier.WaitOutcome
	arriveErr error
	arrivals  []domain.BarrierParticipant

	abandoned  []string
	abandonErr error
}

func (f *fakeBarriers) ConstructBarriers(_ context.Context, p *domain.Pipeline, peID string) ([]domain.BarrierInstance, error) {
	f.constructed = append(f.constructed, peID)
	if f.constructErr != nil {
		return nil, f.constructErr
	}
	return []domain.BarrierInstance{{Name: "deploy", PipelineExecutionID: peID}}, nil
}

func (f *fakeBarriers) Arrive(_ context.Context, _, _ string, p domain.BarrierParticipant) (barrier.WaitOutcome, error) {
	f.arrivals = append(f.arrivals, p)
	return f.outcome, f.arriveErr
}

func (f *fakeBarriers) Abandon(_ context.Context, peID string) (int, error) {
	f.abandoned = append(f.abandoned, peID)
	return 1, f.abandonErr
}

type fakePipelines struct {
	pipeline *domain.Pipeline
	err      error
}

func (f *fakePipelines) ReadPipeline(context.Context, string, string) (*domain.Pipeline, error) {
	return f.pipeline, f.err
}

type fakeStatusWriter struct {
	updates map[string]domain.ExecutionStatus
}

func (f *fakeStatusWriter) UpdateStatus(_ context.Context, id string, status domain.ExecutionStatus) error {
	if f.updates == nil {
		f.updates = map[string]domain.ExecutionStatus{}
	}
	f.updates[id] = status
	return nil
}

type fakeWorkflowStatusWriter struct {
	fakeStatusWriter
}

func (f *fakeWorkflowStatusWriter) UpdateStatus(ctx context.Context, appID, id string, status domain.ExecutionStatus) error {
	return f.fakeStatusWriter.UpdateStatus(ctx, appID+"/"+id, status)
}

type fakeNotifier struct {
	released []domain.BarrierParticipant
}

func (f *fakeNotifier) PublishBarrierReleased(_ context.Context, _ *domain.BarrierInstance, p domain.BarrierParticipant) error {
	f.released = append(f.released, p)
	return nil
}

type fixture struct {
	refresher *fakeRefresher
	barriers  *fakeBarriers
	pipelines *fakePipelines
	statuses  *fakeStatusWriter
	wfStatus  *fakeWorkflowStatusWriter
	notifier  *fakeNotifier
	orch      *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		refresher: &fakeRefresher{},
		barriers:  &fakeBarriers{outcome: barrier.OutcomeWait},
		pipelines: &fakePipelines{pipeline: &domain.Pipeline{ID: "p1"}},
		statuses:  &fakeStatusWriter{},
		wfStatus:  &fakeWorkflowStatusWriter{},
		notifier:  &fakeNotifier{},
	}
	f.orch = New(Config{
		Refresher:          f.refresher,
		Barriers:           f.barriers,
		Pipelines:          f.pipelines,
		Executions:         f.statuses,
		WorkflowExecutions: f.wfStatus,
		Notifier:           f.notifier,
	})
	return f
}

// --- Transition ---

func TestProcessTransition(t *testing.T) {
	f := newFixture()

	err := f.orch.processTransition(context.Background(), mq.TransitionPayload{AppID: "app", WorkflowExecutionID: "wfe1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.refresher.calls) != 1 || f.refresher.calls[0] != "wfe1" {
		t.Errorf("expected refresh of wfe1, got %v", f.refresher.calls)
	}
}

func TestProcessTransition_NotFoundIsAcked(t *testing.T) {
	f := newFixture()
	f.refresher.err = repo.ErrNotFound

	err := f.orch.processTransition(context.Background(), mq.TransitionPayload{AppID: "app", WorkflowExecutionID: "wfe1"})
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestProcessTransition_TransientErrorIsRequeued(t *testing.T) {
	f := newFixture()
	f.refresher.err = errors.New("connection reset")

	err := f.orch.processTransition(context.Background(), mq.TransitionPayload{AppID: "app", WorkflowExecutionID: "wfe1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if mq.IsPermanent(err) {
		t.Error("transient error should not be permanent")
	}
}

func TestProcessTransition_InvalidPayload(t *testing.T) {
	f := newFixture()

	err := f.orch.processTransition(context.Background(), mq.TransitionPayload{AppID: "app"})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if !mq.IsPermanent(err) {
		t.Error("invalid payload should be permanent")
	}
	if len(f.refresher.calls) != 0 {
		t.Error("refresh should not be called")
	}
}

func TestHandleTransition_ParsesEnvelope(t *testing.T) {
	f := newFixture()

	delivery := &mq.Delivery{Message: mq.Message{
		Type: mq.MessageTypeTransition,
		Payload: map[string]any{
			"app_id":                "app",
			"workflow_execution_id": "wfe7",
			"status":                "SUCCESS",
		},
	}}

	if err := f.orch.handleTransition(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.refresher.calls) != 1 || f.refresher.calls[0] != "wfe7" {
		t.Errorf("expected refresh of wfe7, got %v", f.refresher.calls)
	}
}

// --- Pipeline started ---

func startedPayload() mq.PipelineStartedPayload {
	return mq.PipelineStartedPayload{
		AppID:               "app",
		PipelineID:          "p1",
		PipelineExecutionID: "pe1",
		WorkflowExecutionID: "wfe1",
	}
}

func TestProcessPipelineStarted(t *testing.T) {
	f := newFixture()

	if err := f.orch.processPipelineStarted(context.Background(), startedPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.barriers.constructed) != 1 || f.barriers.constructed[0] != "pe1" {
		t.Errorf("expected barriers for pe1, got %v", f.barriers.constructed)
	}
	if len(f.statuses.updates) != 0 || len(f.wfStatus.updates) != 0 {
		t.Error("status should not change on success")
	}
}

func TestProcessPipelineStarted_ConfigErrorFailsExecution(t *testing.T) {
	f := newFixture()
	f.barriers.constructErr = barrier.ErrBarriersNotRunningConcurrently

	err := f.orch.processPipelineStarted(context.Background(), startedPayload())
	if !mq.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if !errors.Is(err, barrier.ErrBarriersNotRunningConcurrently) {
		t.Errorf("expected barrier code preserved, got %v", err)
	}
	if f.statuses.updates["pe1"] != domain.ExecutionStatusError {
		t.Errorf("expected pe1 marked ERROR, got %v", f.statuses.updates)
	}
	if f.wfStatus.updates["app/wfe1"] != domain.ExecutionStatusError {
		t.Errorf("expected wfe1 marked ERROR, got %v", f.wfStatus.updates)
	}
}

func TestProcessPipelineStarted_PipelineNotFound(t *testing.T) {
	f := newFixture()
	f.pipelines.err = repo.ErrNotFound

	err := f.orch.processPipelineStarted(context.Background(), startedPayload())
	if !mq.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if len(f.barriers.constructed) != 0 {
		t.Error("barriers should not be constructed")
	}
}

func TestProcessPipelineStarted_StoreErrorIsRequeued(t *testing.T) {
	f := newFixture()
	f.barriers.constructErr = errors.New("db down")

	err := f.orch.processPipelineStarted(context.Background(), startedPayload())
	if err == nil || mq.IsPermanent(err) {
		t.Errorf("expected transient error, got %v", err)
	}
	if len(f.statuses.updates) != 0 {
		t.Error("status should not change on transient error")
	}
}

// --- Pipeline aborted ---

func TestProcessPipelineAborted(t *testing.T) {
	f := newFixture()

	err := f.orch.processPipelineAborted(context.Background(), mq.PipelineAbortedPayload{
		AppID:               "app",
		PipelineExecutionID: "pe1",
		WorkflowExecutionID: "wfe1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.barriers.abandoned) != 1 || f.barriers.abandoned[0] != "pe1" {
		t.Errorf("expected pe1 abandoned, got %v", f.barriers.abandoned)
	}
	if len(f.refresher.calls) != 1 {
		t.Errorf("expected projection refresh, got %v", f.refresher.calls)
	}
}

func TestProcessPipelineAborted_WithoutWorkflowExecution(t *testing.T) {
	f := newFixture()

	err := f.orch.processPipelineAborted(context.Background(), mq.PipelineAbortedPayload{PipelineExecutionID: "pe1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.refresher.calls) != 0 {
		t.Error("refresh should be skipped without workflow execution id")
	}
}

// --- Barrier arrival ---

func arrivalPayload() mq.BarrierArrivalPayload {
	return mq.BarrierArrivalPayload{
		PipelineExecutionID:    "pe1",
		Identifier:             "deploy",
		WorkflowID:             "wf-a",
		PipelineStageElementID: "el-a",
	}
}

func TestProcessBarrierArrival_Wait(t *testing.T) {
	f := newFixture()

	if err := f.orch.processBarrierArrival(context.Background(), arrivalPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.barriers.arrivals) != 1 {
		t.Fatalf("expected one arrival, got %d", len(f.barriers.arrivals))
	}
	if f.barriers.arrivals[0].WorkflowID != "wf-a" {
		t.Errorf("unexpected participant %+v", f.barriers.arrivals[0])
	}
	if len(f.notifier.released) != 0 {
		t.Error("waiting participant should not be notified")
	}
}

func TestProcessBarrierArrival_ProceedNotifiesParticipant(t *testing.T) {
	f := newFixture()
	f.barriers.outcome = barrier.OutcomeProceed

	if err := f.orch.processBarrierArrival(context.Background(), arrivalPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.notifier.released) != 1 || f.notifier.released[0].PipelineStageElementID != "el-a" {
		t.Errorf("expected el-a notified, got %v", f.notifier.released)
	}
}

func TestProcessBarrierArrival_ReleasedIsNotifiedBySynchronizer(t *testing.T) {
	f := newFixture()
	f.barriers.outcome = barrier.OutcomeReleased

	if err := f.orch.processBarrierArrival(context.Background(), arrivalPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.notifier.released) != 0 {
		t.Errorf("orchestrator should not notify on release, got %v", f.notifier.released)
	}
}

func TestProcessBarrierArrival_InvalidPayload(t *testing.T) {
	f := newFixture()

	err := f.orch.processBarrierArrival(context.Background(), mq.BarrierArrivalPayload{PipelineExecutionID: "pe1"})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if len(f.barriers.arrivals) != 0 {
		t.Error("arrival should not be registered")
	}
}

// --- Lifecycle ---

func TestNew_Defaults(t *testing.T) {
	o := New(Config{})
	if o.prefetch != defaultPrefetch {
		t.Errorf("expected prefetch %d, got %d", defaultPrefetch, o.prefetch)
	}
	if o.logger == nil {
		t.Error("logger should default")
	}
}

func TestStart_AfterStop(t *testing.T) {
	o := New(Config{})
	o.Stop()

	if !o.IsStopped() {
		t.Error("expected stopped")
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrOrchestratorStopped) {
		t.Errorf("expected ErrOrchestratorStopped, got %v", err)
	}
}
