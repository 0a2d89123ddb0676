package worker

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-flow/routes"
	"golang.org/x/sync/errgroup"
)

// Pool runs one worker per queue
type Pool struct {
	workers []*Worker
}

func NewPool(workers ...*Worker) *Pool {
	return &Pool{workers: workers}
}

// Build creates a worker for every policy, sharing deps and options
func Build(policies []routes.Queue, deps Deps, opts ...Option) (*Pool, error) {
	seen := make(map[string]struct{}, len(policies))
	p := &Pool{}
	for _, q := range policies {
		if _, dup := seen[q.Name]; dup {
			return nil, fmt.Errorf("queue %s listed twice", q.Name)
		}
		seen[q.Name] = struct{}{}
		p.workers = append(p.workers, New(q, deps, opts...))
	}
	return p, nil
}

func (p *Pool) Queues() []string {
	out := make([]string, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Queue())
	}
	return out
}

// InFlight returns the jobs in flight across the pool
func (p *Pool) InFlight() int {
	n := 0
	for _, w := range p.workers {
		n += w.InFlight()
	}
	return n
}

// Run blocks until ctx is cancelled and every worker drained
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
