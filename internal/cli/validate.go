package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/repo"
)

// validationExecutionID — pipeline execution, под которым validate ищет barrier.
const validationExecutionID = "validate"

// ValidationReport — результат офлайн-проверки pipeline.
type ValidationReport struct {
	PipelineID string                   `json:"pipeline_id"`
	States     int                      `json:"states"`
	Barriers   []domain.BarrierInstance `json:"barriers"`
}

// workflowSet — WorkflowReader поверх загруженных из файлов workflow.
type workflowSet map[string]*domain.Workflow

func (s workflowSet) ReadWorkflow(_ context.Context, _, workflowID string) (*domain.Workflow, error) {
	wf, ok := s[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, repo.ErrNotFound)
	}
	return wf, nil
}

// Validate разбирает определения, компилирует граф состояний и
// ищет barrier так же, как при старте pipeline execution.
func Validate(ctx context.Context, pipelineData []byte, workflowData [][]byte) (*ValidationReport, error) {
	p, err := engine.ParsePipeline(pipelineData)
	if err != nil {
		return nil, err
	}

	sm, err := engine.CompilePipeline(p, p.ID)
	if err != nil {
		return nil, err
	}

	workflows := make(workflowSet, len(workflowData))
	for _, data := range workflowData {
		wf, err := engine.ParseWorkflow(data)
		if err != nil {
			return nil, err
		}
		workflows[wf.ID] = wf
	}

	synchronizer := barrier.New(barrier.Config{
		Store:     barrier.NewMemoryStore(),
		Workflows: workflows,
	})

	barriers, err := synchronizer.ConstructBarriers(ctx, p, validationExecutionID)
	if err != nil {
		return nil, err
	}

	return &ValidationReport{
		PipelineID: p.ID,
		States:     len(sm.States),
		Barriers:   barriers,
	}, nil
}

// NewValidateCmd создаёт команду офлайн-проверки pipeline.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var pipelineFile string
	var workflowFiles []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline and preview its barriers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			pipelineData, workflowData, err := readDefinitions(pipelineFile, workflowFiles)
			if err != nil {
				return err
			}

			report, err := Validate(cmd.Context(), pipelineData, workflowData)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline %s is valid: %d states, %d barriers",
				report.PipelineID, report.States, len(report.Barriers)))
			return out.Print(
				[]string{"BARRIER", "PARTICIPANTS"},
				barrierParticipantRows(report.Barriers),
				report,
			)
		},
	}

	cmd.Flags().StringVar(&pipelineFile, "pipeline", "", "Pipeline definition file, JSON or YAML (required)")
	cmd.Flags().StringSliceVar(&workflowFiles, "workflow", nil, "Workflow definition file (repeatable)")
	cmd.MarkFlagRequired("pipeline")

	return cmd
}

// readDefinitions читает файлы определений pipeline и workflow.
func readDefinitions(pipelineFile string, workflowFiles []string) ([]byte, [][]byte, error) {
	pipelineData, err := os.ReadFile(pipelineFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read pipeline: %w", err)
	}

	workflowData := make([][]byte, 0, len(workflowFiles))
	for _, f := range workflowFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, nil, fmt.Errorf("read workflow: %w", err)
		}
		workflowData = append(workflowData, data)
	}
	return pipelineData, workflowData, nil
}

func barrierParticipantRows(barriers []domain.BarrierInstance) [][]string {
	rows := make([][]string, len(barriers))
	for i, b := range barriers {
		names := make([]string, len(b.Participants))
		for j, p := range b.Participants {
			names[j] = p.PipelineStageElementID + "/" + p.WorkflowID
		}
		rows[i] = []string{b.Name, strconv.Itoa(len(names)) + " (" + strings.Join(names, ", ") + ")"}
	}
	return rows
}
