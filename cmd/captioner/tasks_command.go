package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/task"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List recorded pipeline tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []task.Status
			if strings.TrimSpace(statusFilter) != "" {
				status, ok := task.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", statusFilter, statusNames())
				}
				statuses = append(statuses, status)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			tasks, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks recorded")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, []string{
					fmt.Sprintf("%d", t.ID),
					string(t.Status),
					fmt.Sprintf("%.0f%%", t.ProgressPercent),
					filepath.Base(t.InputPath),
					filepath.Base(t.OutputPath),
					t.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "ID", right: true},
					{title: "STATUS"},
					{title: "PROGRESS", right: true},
					{title: "INPUT"},
					{title: "OUTPUT"},
					{title: "UPDATED"},
				},
				rows,
			))

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, statsLine(stats))
			return nil
		},
	}

	tasksCmd.Flags().StringVar(&statusFilter, "status", "", "Only list tasks with this status")
	tasksCmd.AddCommand(newTasksClearCommand(ctx))
	tasksCmd.AddCommand(newTasksResetCommand(ctx))
	return tasksCmd
}

func statusNames() string {
	all := task.AllStatuses()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// statsLine summarizes counts per status in the canonical status order.
func statsLine(stats map[task.Status]int) string {
	parts := make([]string, 0, len(stats))
	for _, status := range task.AllStatuses() {
		if n := stats[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		return "0 tasks"
	}
	return strings.Join(parts, ", ")
}

func newTasksClearCommand(ctx *commandContext) *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed tasks from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			if failed {
				tasks, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range tasks {
					if !t.IsTerminal() {
						continue
					}
					if _, err := store.Remove(cmd.Context(), t.ID); err != nil {
						return err
					}
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Also remove failed and cancelled tasks")
	return cmd
}

func newTasksResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset tasks stuck in a processing state back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			reset, err := store.ResetStuckProcessing(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reset %d tasks to pending\n", reset)

			next, err := store.NextPending(cmd.Context())
			if err != nil {
				return err
			}
			if next != nil {
				fmt.Fprintf(out, "Next pending: #%d %s\n", next.ID, filepath.Base(next.InputPath))
			}
			return nil
		},
	}
}
