package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by stores when a workflow, execution or node record does not exist
	ErrNotFound = errors.New("not found")
	// ErrHopLimit is returned when an execution traverses more edges than allowed
	ErrHopLimit = errors.New("hop limit exceeded")
	// ErrDuplicate is returned by CreateExecution when the execution id is already taken
	ErrDuplicate = errors.New("already exists")
)

/* Definition is one immutable version of a workflow graph
 * Saving a definition always produces a new Version; executions pin the version they started on
 */
type Definition struct {
	ID        string
	TenantID  string
	Version   int
	Name      string
	Status    DefinitionStatus
	Nodes     []Node
	Edges     []Edge
	CreatedAt time.Time
}

// Node is one step of the graph
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Position *Position      `json:"position,omitempty" yaml:"position,omitempty"`
}

// Position only matters to the flow builder
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Kind returns the parsed node type
func (n Node) Kind() NodeType {
	return ParseNodeType(n.Type)
}

// Edge is a directed link between two nodes
type Edge struct {
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DefinitionStatus tells whether new executions may start
type DefinitionStatus int

const (
	Active DefinitionStatus = iota + 1
	Disabled
)

// String returns the string representation of the status
func (s DefinitionStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// NewDefinitionStatus creates a DefinitionStatus from a string
func NewDefinitionStatus(s string) DefinitionStatus {
	if s == "disabled" {
		return Disabled
	}
	return Active
}

// Validate checks the structural invariants of the graph
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("workflow id is required")
	}
	if strings.TrimSpace(d.TenantID) == "" {
		return fmt.Errorf("tenant id is required for workflow %s", d.ID)
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("workflow %s must contain nodes", d.ID)
	}
	index := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("node id is required in workflow %s", d.ID)
		}
		if _, exists := index[n.ID]; exists {
			return fmt.Errorf("duplicate node id %s in workflow %s", n.ID, d.ID)
		}
		index[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		if _, ok := index[e.Source]; !ok {
			return fmt.Errorf("edge source node not found: %s", e.Source)
		}
		if _, ok := index[e.Target]; !ok {
			return fmt.Errorf("edge target node not found: %s", e.Target)
		}
		if e.Condition != "" {
			if _, err := ParseCondition(e.Condition); err != nil {
				return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, err)
			}
		}
	}
	return nil
}

// NodeByID finds a node in the definition
func (d Definition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// TriggerNodes returns the nodes an execution can start from
func (d Definition) TriggerNodes() []Node {
	var out []Node
	for _, n := range d.Nodes {
		if n.Kind().IsTrigger() {
			out = append(out, n)
		}
	}
	return out
}

/* Delay returns how long a node waits before it runs
 * Read from config "delay" (a duration string such as "30s") or "seconds" (a number)
 * Negative or unparsable values mean no delay
 */
func (n Node) Delay() time.Duration {
	if n.Config == nil {
		return 0
	}
	switch v := n.Config["delay"].(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	switch v := n.Config["seconds"].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return 0
}
