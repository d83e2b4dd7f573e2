package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunGetCmd(clientFn, outputFn),
		newRunStagesCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "WORKFLOW", "BATCH_DATE", "STATUS", "CAUSE", "FAILED_STAGE", "CREATED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.WorkflowID, r.BatchDate, r.Status, r.Cause, r.FailedStage, r.CreatedAt}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			outputFn().Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().StringVar(&opts.BatchDate, "batch-date", "", "Filter by batch date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateRunRequest

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Request a new run",
		Long: `Request a new run.

With --config-uri the orchestrator runs the given configuration.
Without it the scanner builds and stores a fresh configuration for --batch-date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.BatchDate != "" {
				if _, err := time.Parse(time.DateOnly, req.BatchDate); err != nil {
					return fmt.Errorf("invalid --batch-date %q, expected YYYY-MM-DD", req.BatchDate)
				}
			}

			run, err := clientFn().CreateRun(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Run requested: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.WorkflowID, "workflow-id", "", "Parent workflow ID (server default if empty)")
	cmd.Flags().StringVar(&req.ConfigURI, "config-uri", "", "Run configuration URI (file:// or s3://)")
	cmd.Flags().StringVar(&req.BatchDate, "batch-date", "", "Batch date (YYYY-MM-DD, today if empty)")
	cmd.Flags().StringVar(&req.DecisionTraceID, "trace-id", "", "Decision trace ID for correlation")

	return cmd
}

func newRunGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "get ID",
		Aliases: []string{"show"},
		Short:   "Show run details",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"ID", "WORKFLOW", "STATUS", "CAUSE", "FAILED_STAGE", "DURATION", "CONFIG_URI", "ERROR"},
				[][]string{{run.ID, run.WorkflowID, run.Status, run.Cause, run.FailedStage, formatMillis(run.DurationMs), run.ConfigURI, run.Error}},
				run,
			)
			return nil
		},
	}
}

func newRunStagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stages RUN_ID",
		Short: "List stages triggered by a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "WORKFLOW", "CHILD_RUN_ID", "STATUS", "ENGINE_STATUS", "DURATION", "ERROR"}
			rows := make([][]string, len(run.Stages))
			for i, s := range run.Stages {
				rows[i] = []string{s.StageKey, s.WorkflowID, s.ChildRunID, s.Status, s.EngineStatus, formatMillis(s.DurationMs), s.Error}
			}

			outputFn().Print(headers, rows, run.Stages)
			return nil
		},
	}
}


// formatMillis печатает длительность; пустая строка, если она неизвестна.
func formatMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return (time.Duration(ms) * time.Millisecond).String()
}
