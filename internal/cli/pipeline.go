package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// NewPipelineCmd создаёт группу команд для pipeline.
func NewPipelineCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Register and start pipelines",
	}

	cmd.AddCommand(
		newPipelineApplyCmd(backendFn, outputFn),
		newPipelineStartCmd(backendFn, outputFn),
	)

	return cmd
}

func newPipelineApplyCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	var pipelineFile string
	var workflowFiles []string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Store pipeline and workflow definitions and compile a new state machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			pipelineData, workflowData, err := readDefinitions(pipelineFile, workflowFiles)
			if err != nil {
				return err
			}

			p, err := engine.ParsePipeline(pipelineData)
			if err != nil {
				return err
			}
			workflows := make([]*domain.Workflow, 0, len(workflowData))
			for _, data := range workflowData {
				wf, err := engine.ParseWorkflow(data)
				if err != nil {
					return err
				}
				workflows = append(workflows, wf)
			}

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			sm, err := b.Apply(ctx, p, workflows)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline %s applied, state machine %s", p.ID, sm.ID))
			return out.Print(
				[]string{"STATE", "TYPE"},
				stateRows(sm),
				sm,
			)
		},
	}

	cmd.Flags().StringVar(&pipelineFile, "pipeline", "", "Pipeline definition file, JSON or YAML (required)")
	cmd.Flags().StringSliceVar(&workflowFiles, "workflow", nil, "Workflow definition file (repeatable)")
	cmd.MarkFlagRequired("pipeline")

	return cmd
}

func newPipelineStartCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start APP_ID PIPELINE_ID",
		Short: "Start a pipeline execution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			pe, err := b.StartPipeline(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline execution started: %s", pe.ID))
			return out.Print(
				[]string{"PIPELINE_EXECUTION", "WORKFLOW_EXECUTION", "STATUS"},
				[][]string{{pe.ID, pe.WorkflowExecutionID, string(pe.Status)}},
				pe,
			)
		},
	}
}

func stateRows(sm *domain.StateMachine) [][]string {
	rows := make([][]string, len(sm.States))
	for i, s := range sm.States {
		rows[i] = []string{s.Name, string(s.Type)}
	}
	return rows
}
