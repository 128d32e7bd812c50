package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
)

// NewBarrierCmd создаёт группу команд для barrier instances.
func NewBarrierCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "barrier",
		Short: "Inspect and release barriers",
	}

	cmd.AddCommand(
		newBarrierListCmd(backendFn, outputFn),
		newBarrierReleaseCmd(backendFn, outputFn),
		newBarrierArriveCmd(backendFn, outputFn),
		newBarrierWaitCmd(backendFn, outputFn),
	)

	return cmd
}

func newBarrierListCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list PIPELINE_EXECUTION_ID",
		Short: "List barriers of a pipeline execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			barriers, err := b.Synchronizer.List(ctx, args[0])
			if err != nil {
				return err
			}

			return out.Print(
				[]string{"NAME", "STATE", "ARRIVED", "REASON", "RELEASED"},
				barrierRows(barriers),
				barriers,
			)
		},
	}
}

func newBarrierReleaseCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "release PIPELINE_EXECUTION_ID",
		Short: "Force-release all standing barriers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			released, err := b.Synchronizer.Abandon(ctx, args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Released %d barrier(s)", released))
			return nil
		},
	}
}

func newBarrierArriveCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	var participant domain.BarrierParticipant

	cmd := &cobra.Command{
		Use:   "arrive PIPELINE_EXECUTION_ID IDENTIFIER",
		Short: "Register a participant arrival at a barrier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			outcome, err := b.Arrive(ctx, args[0], args[1], participant)
			if err != nil {
				return err
			}

			if outcome == "" {
				out.Success("Arrival published")
				return nil
			}
			out.Success(fmt.Sprintf("Arrival registered: %s", outcome))
			return nil
		},
	}

	cmd.Flags().StringVar(&participant.WorkflowID, "workflow", "", "Participant workflow ID (required)")
	cmd.Flags().StringVar(&participant.PipelineStageElementID, "element", "", "Participant pipeline stage element ID (required)")
	cmd.MarkFlagRequired("workflow")
	cmd.MarkFlagRequired("element")

	return cmd
}

func newBarrierWaitCmd(backendFn func(context.Context) (*Backend, error), outputFn func() *Output) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait PIPELINE_EXECUTION_ID IDENTIFIER",
		Short: "Block until a barrier is released",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			b, err := backendFn(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if err := b.Synchronizer.Wait(ctx, args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Barrier %s is down", args[1]))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this duration (0 waits forever)")

	return cmd
}

func barrierRows(barriers []domain.BarrierInstance) [][]string {
	rows := make([][]string, len(barriers))
	for i, b := range barriers {
		reason := string(b.ReleaseReason)
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{
			b.Name,
			string(b.State),
			strconv.Itoa(len(b.Arrived)) + "/" + strconv.Itoa(len(b.Participants)),
			reason,
			formatTime(b.ReleasedAt),
		}
	}
	return rows
}
