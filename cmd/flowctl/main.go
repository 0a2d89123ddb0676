package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/internal/app"
	"github.com/spf13/cobra"
)

/* flowctl is the operator CLI: queue policy validation, workflow import,
 * webhook registration, schedules and job/execution lookups
 * It talks to the same stores as the api and worker, so DATABASE_URL and REDIS_ADDR must point at them
 */

// cli holds the App shared by the commands of one invocation
type cli struct {
	out  io.Writer
	open func(ctx context.Context) (*app.App, error)
	a    *app.App
}

func (c *cli) app(ctx context.Context) (*app.App, error) {
	if c.a != nil {
		return c.a, nil
	}
	a, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.a = a
	return a, nil
}

func (c *cli) close() {
	if c.a != nil {
		c.a.Close(context.Background())
		c.a = nil
	}
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return app.Open(ctx, cfg, "flowctl", logger)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Operate webhook-flow workflows, triggers and queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.AddCommand(
		newQueuesCmd(c),
		newWorkflowCmd(c),
		newWebhookCmd(c),
		newScheduleCmd(c),
		newJobCmd(c),
		newExecutionCmd(c),
		newSecretCmd(c),
	)
	return root
}

func main() {
	c := &cli{out: os.Stdout, open: openFromEnv}
	defer c.close()
	if err := newRootCmd(c).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		c.close()
		os.Exit(1)
	}
}
