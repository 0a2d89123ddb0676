package workflow

import (
	"log/slog"
	"strings"
)

// Resolver computes which nodes run after a node completes
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a graph resolver; a nil logger falls back to slog.Default
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

/* Next returns the targets of every traversable outgoing edge of currentNodeID
 * Edges whose target is missing from the definition are dropped and logged
 * Edge order is preserved and a target reached by several edges is returned once
 */
func (r *Resolver) Next(def Definition, currentNodeID string, output map[string]any) []Node {
	seen := make(map[string]struct{})
	var out []Node
	for _, e := range def.Edges {
		if e.Source != currentNodeID {
			continue
		}
		if !r.traversable(def, e, output) {
			continue
		}
		if _, dup := seen[e.Target]; dup {
			continue
		}
		target, ok := def.NodeByID(e.Target)
		if !ok {
			r.logger.Warn("dropping edge with unresolved target",
				"workflow_id", def.ID,
				"version", def.Version,
				"source", e.Source,
				"target", e.Target,
			)
			continue
		}
		seen[e.Target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func (r *Resolver) traversable(def Definition, e Edge, output map[string]any) bool {
	if e.Condition != "" {
		ok, err := EvaluateCondition(e.Condition, output)
		if err != nil {
			r.logger.Warn("edge condition not evaluable",
				"workflow_id", def.ID,
				"source", e.Source,
				"target", e.Target,
				"condition", e.Condition,
				"error", err,
			)
			return false
		}
		return ok
	}
	result, hasResult := output["result"].(bool)
	if !hasResult {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(e.Label)) {
	case "true", "yes":
		return result
	case "false", "no":
		return !result
	default:
		return true
	}
}
