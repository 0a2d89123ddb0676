package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-flow/trigger"
	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// workflowFile is the YAML form of a definition, as exported by the flow builder
type workflowFile struct {
	ID       string          `yaml:"id"`
	TenantID string          `yaml:"tenant_id"`
	Name     string          `yaml:"name,omitempty"`
	Status   string          `yaml:"status,omitempty"`
	Version  int             `yaml:"version,omitempty"`
	Nodes    []workflow.Node `yaml:"nodes"`
	Edges    []workflow.Edge `yaml:"edges,omitempty"`
}

// definition leaves Status unset when the file has none, so a re-import keeps the stored status
func (f workflowFile) definition() workflow.Definition {
	def := workflow.Definition{
		ID:       f.ID,
		TenantID: f.TenantID,
		Name:     f.Name,
		Nodes:    f.Nodes,
		Edges:    f.Edges,
	}
	if f.Status != "" {
		def.Status = workflow.NewDefinitionStatus(f.Status)
	}
	return def
}

func fileFromDefinition(def workflow.Definition) workflowFile {
	return workflowFile{
		ID:       def.ID,
		TenantID: def.TenantID,
		Name:     def.Name,
		Status:   def.Status.String(),
		Version:  def.Version,
		Nodes:    def.Nodes,
		Edges:    def.Edges,
	}
}

func readWorkflowFile(path string) (workflow.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to read workflow file: %w", err)
	}
	var f workflowFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to parse workflow: %w", err)
	}
	def := f.definition()
	if err := def.Validate(); err != nil {
		return workflow.Definition{}, fmt.Errorf("invalid workflow: %w", err)
	}
	return def, nil
}

func newWorkflowCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Import, inspect and run workflow definitions",
	}

	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Store a workflow file as a new version",
		Long: `Parse and validate a workflow file, then store it as a new version.
Executions already running keep the version they started on.`,
		Example: `  flowctl workflow import support-bot.yaml
  flowctl workflow import support-bot.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readWorkflowFile(args[0])
			if err != nil {
				return err
			}
			c.printf("Workflow %s (tenant %s): %d nodes, %d edges\n", def.ID, def.TenantID, len(def.Nodes), len(def.Edges))
			if dryRun {
				c.printf("Dry-run complete, nothing stored\n")
				return nil
			}
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			version, err := a.Workflows.SaveWorkflow(cmd.Context(), def)
			if err != nil {
				return err
			}
			c.printf("Stored version %d\n", version)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without storing")

	var version int
	showCmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Print a stored definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			var def workflow.Definition
			if version > 0 {
				def, err = a.Workflows.GetWorkflowVersion(cmd.Context(), args[0], version)
			} else {
				def, err = a.Workflows.GetWorkflow(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(fileFromDefinition(def))
			if err != nil {
				return err
			}
			c.printf("%s", out)
			return nil
		},
	}
	showCmd.Flags().IntVar(&version, "version", 0, "pinned version, latest when omitted")

	disableCmd := &cobra.Command{
		Use:   "disable <workflow-id>",
		Short: "Stop new executions and deactivate the workflow's webhook registrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.setWorkflowStatus(cmd, args[0], workflow.Disabled)
		},
	}
	enableCmd := &cobra.Command{
		Use:   "enable <workflow-id>",
		Short: "Allow new executions again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.setWorkflowStatus(cmd, args[0], workflow.Active)
		},
	}

	var input, node string
	runCmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Start a manual execution",
		Example: `  flowctl workflow run wf-support --input '{"text":"hello"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := map[string]any{}
			if input != "" {
				if err := json.Unmarshal([]byte(input), &data); err != nil {
					return fmt.Errorf("--input must be a JSON object: %w", err)
				}
			}
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			def, err := a.Workflows.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := a.Trigger.Start(cmd.Context(), trigger.Request{
				TenantID:   def.TenantID,
				WorkflowID: def.ID,
				NodeID:     node,
				Source:     trigger.SourceManual,
				EventType:  "manual",
				Input:      data,
			})
			if err != nil {
				return err
			}
			c.printf("Execution %s started, job %s on %s\n", res.ExecutionID, res.JobID, res.Queue)
			return nil
		},
	}
	runCmd.Flags().StringVar(&input, "input", "", "JSON object passed to the start node")
	runCmd.Flags().StringVar(&node, "node", "", "start node, the first trigger node when omitted")

	cmd.AddCommand(importCmd, showCmd, disableCmd, enableCmd, runCmd)
	return cmd
}

func (c *cli) setWorkflowStatus(cmd *cobra.Command, id string, status workflow.DefinitionStatus) error {
	a, err := c.app(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.Workflows.SetWorkflowStatus(cmd.Context(), id, status); err != nil {
		return err
	}
	if status == workflow.Disabled {
		if err := a.Registrations.DeactivateWorkflow(cmd.Context(), id); err != nil {
			return fmt.Errorf("deactivating registrations: %w", err)
		}
	}
	c.printf("Workflow %s is %s\n", id, status)
	return nil
}
