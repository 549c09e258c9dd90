package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"voicelog/internal/domain"
)

func NewQueueCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue",
		Short:   "Inspect and manage background enrichment tasks",
		Aliases: []string{"tasks"},
	}

	cmd.AddCommand(newQueueListCmd(state))
	cmd.AddCommand(newQueueRetryFailedCmd(state))
	cmd.AddCommand(newQueueClearFailedCmd(state))
	cmd.AddCommand(newQueueCleanupCmd(state))
	cmd.AddCommand(newQueueProcessCmd(state))

	return cmd
}

func newQueueListCmd(state *rootState) *cobra.Command {
	var (
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list [flags]",
		Short:   "List queued tasks",
		Aliases: []string{"ls"},
		Example: `  # List failed tasks
  voicelogctl queue list --status failed

  # List every task as JSON
  voicelogctl queue list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			switch domain.TaskStatus(status) {
			case "", domain.TaskPending, domain.TaskProcessing, domain.TaskCompleted, domain.TaskFailed:
			default:
				return fmt.Errorf("unknown status %q", status)
			}

			tasks := services.Queue.List(domain.TaskStatus(status))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			return renderTasks(cmd.OutOrStdout(), tasks)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list tasks with this status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tasks as JSON")
	return cmd
}

func renderTasks(w io.Writer, tasks []domain.QueuedTask) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tRETRIES\tUPDATED\tERROR")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			task.ID,
			task.Kind,
			task.Status,
			task.RetryCount,
			task.UpdatedAt.Local().Format(time.DateTime),
			firstLine(task.Error),
		)
	}
	return tw.Flush()
}

func newQueueRetryFailedCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Reset every permanently failed task and run it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			n, err := services.Queue.RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := services.Queue.ProcessPending(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "retried %d task(s)\n", n)
			return nil
		},
	}
}

func newQueueClearFailedCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove every permanently failed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			n, err := services.Queue.ClearFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d task(s)\n", n)
			return nil
		},
	}
}

func newQueueCleanupCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove completed tasks older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			n, err := services.Queue.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d completed task(s)\n", n)
			return nil
		},
	}
}

func newQueueProcessCmd(state *rootState) *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one attempt of every pending or retryable task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			n, err := services.Queue.ProcessPending(cmd.Context())
			if err != nil {
				return err
			}
			stats := services.Queue.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d task(s): %d pending, %d completed, %d failed\n",
				n, stats.Pending, stats.Completed, stats.Failed)
			if showMetrics {
				return renderMetrics(cmd.OutOrStdout(), services.Registry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print queue metrics after processing")
	return cmd
}

func renderMetrics(w io.Writer, registry prometheus.Gatherer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			value := metric.GetCounter().GetValue()
			if metric.GetGauge() != nil {
				value = metric.GetGauge().GetValue()
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, value))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
