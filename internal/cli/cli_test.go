package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

const pipelineYAML = `
id: p1
app_id: app
name: release
stages:
  - name: DEV
    elements:
      - id: el-dev
        name: deploy-dev
        type: ENV_STATE
        properties:
          workflowId: wf-dev
  - name: QA
    parallel: true
    elements:
      - id: el-qa
        name: deploy-qa
        type: ENV_STATE
        properties:
          workflowId: wf-qa
  - name: PROD
    elements:
      - id: el-approve
        name: approve
        type: APPROVAL
`

func workflowYAML(id, identifier string) string {
	return `
id: ` + id + `
app_id: app
orchestration:
  phases:
    - id: ` + id + `-phase
      name: Phase 1
      phase_steps:
        - id: ` + id + `-ps
          name: Deploy
          steps:
            - id: ` + id + `-barrier
              name: sync
              type: BARRIER
              properties:
                identifier: ` + identifier + `
`
}

// --- Validate ---

func TestValidate_FindsSharedBarrier(t *testing.T) {
	report, err := Validate(context.Background(), []byte(pipelineYAML), [][]byte{
		[]byte(workflowYAML("wf-dev", "deploy")),
		[]byte(workflowYAML("wf-qa", "deploy")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.PipelineID != "p1" {
		t.Errorf("expected pipeline p1, got %s", report.PipelineID)
	}
	if report.States != 4 {
		t.Errorf("expected 4 states (fork + 3 elements), got %d", report.States)
	}
	if len(report.Barriers) != 1 {
		t.Fatalf("expected 1 barrier, got %d", len(report.Barriers))
	}
	if report.Barriers[0].Name != "deploy" || len(report.Barriers[0].Participants) != 2 {
		t.Errorf("unexpected barrier %+v", report.Barriers[0])
	}
}

func TestValidate_NoSharedIdentifier(t *testing.T) {
	report, err := Validate(context.Background(), []byte(pipelineYAML), [][]byte{
		[]byte(workflowYAML("wf-dev", "a")),
		[]byte(workflowYAML("wf-qa", "b")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Barriers) != 0 {
		t.Errorf("expected no barriers, got %v", report.Barriers)
	}
}

func TestValidate_MissingIdentifier(t *testing.T) {
	_, err := Validate(context.Background(), []byte(pipelineYAML), [][]byte{
		[]byte(workflowYAML("wf-dev", `""`)),
		[]byte(workflowYAML("wf-qa", "deploy")),
	})
	if !errors.Is(err, barrier.ErrInvalidBarrierConfiguration) {
		t.Errorf("expected ErrInvalidBarrierConfiguration, got %v", err)
	}
}

func TestValidate_MissingWorkflowFile(t *testing.T) {
	_, err := Validate(context.Background(), []byte(pipelineYAML), [][]byte{
		[]byte(workflowYAML("wf-dev", "deploy")),
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate_InvalidPipeline(t *testing.T) {
	_, err := Validate(context.Background(), []byte("id: p1\nstages: []\n"), nil)
	if err == nil {
		t.Error("expected error for pipeline without stages")
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	pipeline := write("pipeline.yaml", pipelineYAML)
	dev := write("dev.yaml", workflowYAML("wf-dev", "deploy"))
	qa := write("qa.yaml", workflowYAML("wf-qa", "deploy"))

	var stdout, stderr bytes.Buffer
	cmd := NewValidateCmd(func() *Output { return NewOutputTo(true, &stdout, &stderr) })
	cmd.SetArgs([]string{"--pipeline", pipeline, "--workflow", dev, "--workflow", qa})
	cmd.SetContext(context.Background())

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report ValidationReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(report.Barriers) != 1 {
		t.Errorf("expected 1 barrier, got %d", len(report.Barriers))
	}
	if !strings.Contains(stderr.String(), "is valid") {
		t.Errorf("expected success message, got %q", stderr.String())
	}
}

// --- State records ---

func TestNewStateInstance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inst := newStateInstance("app", "wfe1", domain.StateTypeEnvState, StateRecord{
		StateName:         "deploy-dev",
		Status:            domain.ExecutionStatusFailed,
		NestedExecutionID: "nested-1",
		ErrorMessage:      "boom",
	}, now)

	if inst.NestedWorkflowExecutionID() != "nested-1" || inst.ErrorMessage() != "boom" {
		t.Errorf("unexpected execution data %v", inst.ExecutionData)
	}
	if inst.FinishedAt == nil || !inst.FinishedAt.Equal(now) {
		t.Error("terminal status should set FinishedAt")
	}
	if inst.StateType != domain.StateTypeEnvState || inst.ExecutionID != "wfe1" {
		t.Errorf("unexpected instance %+v", inst)
	}

	running := newStateInstance("app", "wfe1", domain.StateTypeApproval, StateRecord{
		StateName: "approve",
		Status:    domain.ExecutionStatusRunning,
	}, now)
	if running.FinishedAt != nil {
		t.Error("running state should not be finished")
	}
	if len(running.ExecutionData) != 0 {
		t.Errorf("expected empty execution data, got %v", running.ExecutionData)
	}
}

// --- Output ---

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, &bytes.Buffer{})

	err := out.Print([]string{"NAME", "STATE"}, [][]string{{"deploy", "STANDING"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and row, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "----") {
		t.Errorf("expected separator line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "STANDING") {
		t.Errorf("expected row, got %q", lines[2])
	}
}

func TestBarrierRows(t *testing.T) {
	released := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := domain.BarrierParticipant{WorkflowID: "wf", PipelineStageElementID: "el"}

	rows := barrierRows([]domain.BarrierInstance{
		{Name: "a", State: domain.BarrierStateStanding, Participants: []domain.BarrierParticipant{p, p}, Arrived: []domain.BarrierParticipant{p}},
		{Name: "b", State: domain.BarrierStateDown, ReleaseReason: domain.ReleaseReasonAbandoned, ReleasedAt: &released},
	})

	if rows[0][2] != "1/2" || rows[0][3] != "-" || rows[0][4] != "-" {
		t.Errorf("unexpected standing row %v", rows[0])
	}
	if rows[1][3] != string(domain.ReleaseReasonAbandoned) || rows[1][4] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected released row %v", rows[1])
	}
}
