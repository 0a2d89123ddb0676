package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/marcelsud/webhook-flow/scheduler"
	"github.com/spf13/cobra"
)

func newScheduleCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled triggers",
	}

	var tenant, workflowID, node, spec, timezone, input string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a workflow trigger node",
		Example: `  flowctl schedule add --tenant acme --workflow wf-report --cron "0 9 * * 1-5" --tz America/Sao_Paulo
  flowctl schedule add --tenant acme --workflow wf-sync --cron "@every 15m"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data map[string]any
			if input != "" {
				if err := json.Unmarshal([]byte(input), &data); err != nil {
					return fmt.Errorf("--input must be a JSON object: %w", err)
				}
			}
			ev, err := scheduler.NewEvent(tenant, workflowID, node, spec, timezone, data)
			if err != nil {
				return err
			}
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			ev, err = a.Scheduler().Add(cmd.Context(), ev)
			if err != nil {
				return err
			}
			c.printf("Scheduled event %s, next run %s\n", ev.ID, ev.NextRun.Format(time.RFC3339))
			return nil
		},
	}
	addCmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	addCmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id")
	addCmd.Flags().StringVar(&node, "node", "", "trigger node id, the first trigger node when omitted")
	addCmd.Flags().StringVar(&spec, "cron", "", "cron spec with optional seconds field, or @every/@hourly style descriptor")
	addCmd.Flags().StringVar(&timezone, "tz", "", "IANA timezone, UTC when omitted")
	addCmd.Flags().StringVar(&input, "input", "", "JSON object passed to the start node")
	for _, f := range []string{"tenant", "workflow", "cron"} {
		_ = addCmd.MarkFlagRequired(f)
	}

	var listTenant string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			events, err := a.Schedules.List(cmd.Context(), listTenant)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTENANT\tWORKFLOW\tSCHEDULE\tTZ\tSTATUS\tNEXT RUN\tLAST RUN")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.TenantID, ev.WorkflowID, ev.Schedule,
					orDash(ev.Timezone), ev.Status, formatTime(ev.NextRun), formatTime(ev.LastRun))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "tenant id, every tenant when omitted")

	pauseCmd := &cobra.Command{
		Use:   "pause <event-id>",
		Short: "Stop an event from firing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Schedules.SetStatus(cmd.Context(), args[0], scheduler.Paused, ""); err != nil {
				return err
			}
			c.printf("Event %s paused\n", args[0])
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <event-id>",
		Short: "Resume a paused event from its next occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			ev, err := a.Schedules.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// runs missed while paused are skipped
			next, err := scheduler.NextRun(ev.Schedule, ev.Timezone, time.Now())
			if err != nil {
				return err
			}
			if err := a.Schedules.SetNextRun(cmd.Context(), ev.ID, next); err != nil {
				return err
			}
			if err := a.Schedules.SetStatus(cmd.Context(), ev.ID, scheduler.Active, ""); err != nil {
				return err
			}
			c.printf("Event %s resumed, next run %s\n", ev.ID, next.Format(time.RFC3339))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Remove a scheduled event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Schedules.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.printf("Event %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, pauseCmd, resumeCmd, deleteCmd)
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
