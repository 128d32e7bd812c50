package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
)

// NewRefreshCmd создаёт команду ручного пересчёта проекции.
func NewRefreshCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh APP_ID WORKFLOW_EXECUTION_ID",
		Short: "Recompute pipeline execution status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Reconciler.Refresh(ctx, args[0], args[1]); err != nil {
				return err
			}

			pe, err := b.Executions.GetByWorkflowExecutionID(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline execution %s: %s", pe.ID, pe.Status))
			return printStages(out, pe)
		},
	}
}

// NewExecutionCmd создаёт группу команд для pipeline executions.
func NewExecutionCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Inspect pipeline executions",
	}

	cmd.AddCommand(
		newExecutionShowCmd(backendFn, outputFn),
		newExecutionRecordCmd(backendFn, outputFn),
		newExecutionAbortCmd(backendFn, outputFn),
	)

	return cmd
}

func newExecutionShowCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKFLOW_EXECUTION_ID",
		Short: "Show stored stage statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			pe, err := b.Executions.GetByWorkflowExecution(ctx, args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline execution %s (%s): %s", pe.ID, pe.PipelineID, pe.Status))
			return printStages(out, pe)
		},
	}
}

func newExecutionRecordCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	var nested, errorMsg string

	cmd := &cobra.Command{
		Use:   "record APP_ID WORKFLOW_EXECUTION_ID STATE STATUS",
		Short: "Record a state execution and refresh the pipeline execution",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			status, err := domain.ParseExecutionStatus(args[3])
			if err != nil {
				return err
			}

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			err = b.RecordState(ctx, args[0], args[1], StateRecord{
				StateName:         args[2],
				Status:            status,
				NestedExecutionID: nested,
				ErrorMessage:      errorMsg,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("State %s recorded as %s", args[2], status))
			return nil
		},
	}

	cmd.Flags().StringVar(&nested, "nested-execution", "", "Nested workflow execution ID (ENV_STATE)")
	cmd.Flags().StringVar(&errorMsg, "error", "", "Error message of the nested execution")

	return cmd
}

func newExecutionAbortCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "abort APP_ID WORKFLOW_EXECUTION_ID",
		Short: "Abort a pipeline execution and abandon its barriers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Abort(ctx, args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow execution %s aborted", args[1]))
			return nil
		},
	}
}

func printStages(out *Output, pe *domain.PipelineExecution) error {
	return out.Print(
		[]string{"ELEMENT", "TYPE", "STATUS", "STARTED", "FINISHED", "MESSAGE"},
		stageRows(pe.StageExecutions),
		pe,
	)
}

func stageRows(stages []domain.PipelineStageExecution) [][]string {
	rows := make([][]string, len(stages))
	for i, s := range stages {
		rows[i] = []string{
			s.StageElementName,
			string(s.StateType),
			string(s.Status),
			formatTime(s.StartedAt),
			formatTime(s.FinishedAt),
			s.Message,
		}
	}
	return rows
}
