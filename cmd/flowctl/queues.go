package main

import (
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-flow/routes"
	"github.com/spf13/cobra"
)

func newQueuesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "Inspect queue policies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [queues.yaml]",
		Short: "Validate a queue policy file and print the resulting routing",
		Example: `  flowctl queues validate
  flowctl queues validate deploy/queues.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "queues.yaml"
			if len(args) == 1 {
				file = args[0]
			}
			return c.validateQueues(file)
		},
	})
	return cmd
}

func (c *cli) validateQueues(file string) error {
	c.printf("Validating queues file: %s\n", file)
	c.printf("%s\n", strings.Repeat("-", 50))

	loader := routes.NewLoader(nil)
	if err := loader.Load(file); err != nil {
		c.printf("❌ VALIDATION FAILED\n\n")
		return err
	}
	router := routes.NewRouter()
	if err := loader.Apply(router); err != nil {
		c.printf("❌ VALIDATION FAILED\n\n")
		return fmt.Errorf("applying node type overrides: %w", err)
	}

	c.printf("✓ VALIDATION PASSED\n\n")
	names := loader.Queues(router)
	c.printf("Serving %d queue(s):\n", len(names))
	for i, name := range names {
		q := loader.Policy(name)
		c.printf("\n%d. Queue: %s\n", i+1, q.Name)
		c.printf("   Concurrency:  %d\n", q.Concurrency)
		c.printf("   Max Attempts: %d\n", q.MaxAttempts)
		c.printf("   Backoff:      %s %s\n", q.Backoff.Strategy, q.Backoff.Delay)
		c.printf("   Timeout:      %s\n", q.Timeout)
		if len(q.NodeTypes) > 0 {
			types := make([]string, 0, len(q.NodeTypes))
			for _, t := range q.NodeTypes {
				types = append(types, t.String())
			}
			c.printf("   Node Types:   %s\n", strings.Join(types, ", "))
		}
	}
	c.printf("\n✓ All queues are valid!\n")
	return nil
}
