package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/marcelsud/webhook-flow/internal/app"
	"github.com/spf13/cobra"
)

func newWebhookCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage webhook registrations",
	}

	var tenant, provider, workflowID, node string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Bind a provider webhook to a workflow trigger node",
		Example: `  flowctl webhook register --tenant acme --provider slack --workflow wf-support --node n1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			reg, err := a.Webhooks(app.Adapters(a.Config.MetaVerifyToken)).
				Register(cmd.Context(), tenant, provider, workflowID, node)
			if err != nil {
				return err
			}
			c.printf("Registration %s (%s)\n", reg.ID, reg.Status)
			c.printf("Endpoint: /webhooks/%s/%s/%s\n", reg.TenantID, reg.Provider, reg.WorkflowID)
			if _, ok := a.Config.SecretFor(reg.TenantID, reg.Provider); !ok {
				c.printf("Warning: no signing secret configured, deliveries will not be verified\n")
			}
			return nil
		},
	}
	registerCmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	registerCmd.Flags().StringVar(&provider, "provider", "", "provider id, e.g. meta, whatsapp, slack, standard")
	registerCmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id")
	registerCmd.Flags().StringVar(&node, "node", "", "trigger node id")
	for _, f := range []string{"tenant", "provider", "workflow", "node"} {
		_ = registerCmd.MarkFlagRequired(f)
	}

	var listTenant string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registrations of a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			regs, err := a.Registrations.ListRegistrations(cmd.Context(), listTenant)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tWORKFLOW\tNODE\tSTATUS\tLAST TRIGGERED")
			for _, r := range regs {
				last := "-"
				if !r.LastTriggeredAt.IsZero() {
					last = r.LastTriggeredAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Provider, r.WorkflowID, r.NodeID, r.Status, last)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "tenant id")
	_ = listCmd.MarkFlagRequired("tenant")

	cmd.AddCommand(registerCmd, listCmd)
	return cmd
}
