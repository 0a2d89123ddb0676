package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-flow/worker"
	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/ohler55/ojg/jp"
)

// Trigger passes the event data that started the execution on to the next nodes
type Trigger struct{}

func (Trigger) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	return copyMap(req.Input), nil
}

// Delay is a pass-through; the wait itself happens in the queue before the job is delivered
type Delay struct{}

func (Delay) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	out := copyMap(req.Input)
	if d := req.Node.Delay(); d > 0 {
		out["delayed"] = d.String()
	}
	return out, nil
}

/* Condition evaluates config "expression" against the input
 * The output is the input plus a boolean "result" that labelled true/false edges branch on
 */
type Condition struct{}

func (Condition) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	expr := configString(req.Node.Config, "expression")
	if expr == "" {
		expr = configString(req.Node.Config, "condition")
	}
	if expr == "" {
		return nil, worker.Permanent(fmt.Errorf("condition node %s has no expression", req.Node.ID))
	}
	ok, err := workflow.EvaluateCondition(expr, req.Input)
	if err != nil {
		return nil, worker.Permanent(fmt.Errorf("condition node %s: %w", req.Node.ID, err))
	}
	out := copyMap(req.Input)
	out["result"] = ok
	return out, nil
}

/* Transform builds its output from config "mapping"
 * String values starting with "$" are JSONPath expressions over the input, anything else is a literal.
 * A path with no match yields nil, several matches yield a list.
 * With config "merge": true the mapped keys are laid over a copy of the input
 */
type Transform struct{}

func (Transform) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	mapping, ok := req.Node.Config["mapping"].(map[string]any)
	if !ok {
		return nil, worker.Permanent(fmt.Errorf("transform node %s has no mapping", req.Node.ID))
	}
	out := map[string]any{}
	if merge, _ := req.Node.Config["merge"].(bool); merge {
		out = copyMap(req.Input)
	}
	for key, spec := range mapping {
		path, isPath := spec.(string)
		if !isPath || !strings.HasPrefix(path, "$") {
			out[key] = spec
			continue
		}
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, worker.Permanent(fmt.Errorf("transform node %s key %s: %w", req.Node.ID, key, err))
		}
		switch got := x.Get(req.Input); len(got) {
		case 0:
			out[key] = nil
		case 1:
			out[key] = got[0]
		default:
			out[key] = got
		}
	}
	return out, nil
}
