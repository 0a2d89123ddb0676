package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/marcelsud/webhook-flow/webhook/signature"
	"github.com/spf13/cobra"
)

func newJobCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status from the queue, or from provenance once the queue forgot it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			status, err := a.Jobs.GetJobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.printf("Job %s: %s\n", args[0], status)
			return nil
		},
	})
	return cmd
}

func newExecutionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Inspect executions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show an execution and its node records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			exec, err := a.Workflows.GetExecution(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			nodes, err := a.Workflows.ListNodeExecutions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			c.printf("Execution: %s\n", exec.ID)
			c.printf("Workflow:  %s v%d (tenant %s)\n", exec.WorkflowID, exec.WorkflowVersion, exec.TenantID)
			c.printf("Source:    %s\n", exec.Source)
			c.printf("Status:    %s\n", exec.Status)
			c.printf("Pending:   %d\n", exec.Pending)
			c.printf("Started:   %s\n", formatTime(exec.StartedAt))
			c.printf("Ended:     %s\n", formatTime(exec.EndedAt))
			if exec.Error != "" {
				c.printf("Error:     %s\n", exec.Error)
			}
			if len(nodes) == 0 {
				return nil
			}
			c.printf("\n")
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NODE\tTYPE\tSTATUS\tATTEMPT\tFINISHED\tERROR")
			for _, n := range nodes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", n.NodeID, n.NodeType, n.Status, n.Attempt,
					formatTime(n.FinishedAt), orDash(n.Error))
			}
			return w.Flush()
		},
	})
	return cmd
}

func newSecretCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Signing secrets for Standard Webhooks senders",
	}
	var size int
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a whsec_ secret",
		Long: `Generate a random Standard Webhooks secret. Configure it as
STANDARD_WEBHOOK_SECRET (or STANDARD_WEBHOOK_SECRET_<TENANT>) and share it with the sender.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signature.GenerateSecret(size)
			if err != nil {
				return err
			}
			c.printf("%s\n", s)
			return nil
		},
	}
	generateCmd.Flags().IntVar(&size, "bytes", signature.MinSecretBytes, "secret size in bytes")
	cmd.AddCommand(generateCmd)
	return cmd
}
