package routes

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/workflow"
	"gopkg.in/yaml.v3"
)

/* Loader manages queue policies from queues.yaml
 * Provides in-memory lookup for fast access
 */

// Config represents the structure of queues.yaml
type Config struct {
	Queues []QueueConfig `yaml:"queues"`
}

// QueueConfig represents a single queue in the YAML file
type QueueConfig struct {
	Name         string   `yaml:"name"`
	Concurrency  int      `yaml:"concurrency"`
	MaxAttempts  int      `yaml:"max_attempts"`
	Backoff      string   `yaml:"backoff"`       // exponential, linear or fixed
	BackoffDelay string   `yaml:"backoff_delay"` // Go duration, default 5s
	Timeout      string   `yaml:"timeout"`       // Go duration, default from config
	NodeTypes    []string `yaml:"node_types"`
}

// Loader holds the loaded queue policies
type Loader struct {
	queues map[string]*Queue
	cfg    *config.Config
}

// NewLoader creates a new queue policy loader; cfg supplies defaults and may be nil
func NewLoader(cfg *config.Config) *Loader {
	return &Loader{
		queues: make(map[string]*Queue),
		cfg:    cfg,
	}
}

// Load reads and parses the queues.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading queues file: %w", err)
	}
	return l.LoadBytes(data)
}

// LoadBytes parses queues.yaml content
func (l *Loader) LoadBytes(data []byte) error {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing queues YAML: %w", err)
	}

	loaded := make(map[string]*Queue, len(cfg.Queues))
	for _, qc := range cfg.Queues {
		q, err := l.toQueue(qc)
		if err != nil {
			return fmt.Errorf("validating queue: %w", err)
		}
		if _, dup := loaded[q.Name]; dup {
			return fmt.Errorf("validating queue: duplicate queue %s", q.Name)
		}
		loaded[q.Name] = q
	}
	for name, q := range loaded {
		l.queues[name] = q
	}
	return nil
}

func (l *Loader) toQueue(qc QueueConfig) (*Queue, error) {
	q := DefaultQueuePolicy(strings.TrimSpace(qc.Name), l.cfg)
	if qc.Concurrency != 0 {
		q.Concurrency = qc.Concurrency
	}
	if qc.MaxAttempts != 0 {
		q.MaxAttempts = qc.MaxAttempts
	}
	strategy, err := job.ParseBackoffStrategy(qc.Backoff)
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", q.Name, err)
	}
	q.Backoff.Strategy = strategy
	if qc.BackoffDelay != "" {
		d, err := time.ParseDuration(qc.BackoffDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid backoff_delay for queue %s: %w", q.Name, err)
		}
		q.Backoff.Delay = d
	}
	if qc.Timeout != "" {
		d, err := time.ParseDuration(qc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout for queue %s: %w", q.Name, err)
		}
		q.Timeout = d
	}
	for _, name := range qc.NodeTypes {
		t := workflow.ParseNodeType(name)
		if t == workflow.UnknownNode && !strings.EqualFold(strings.TrimSpace(name), "unknown") {
			return nil, fmt.Errorf("unknown node type '%s' for queue %s", name, q.Name)
		}
		q.NodeTypes = append(q.NodeTypes, t)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Get retrieves a queue policy by name
func (l *Loader) Get(name string) (*Queue, error) {
	q, exists := l.queues[name]
	if !exists {
		return nil, fmt.Errorf("queue not found: %s", name)
	}
	return q, nil
}

// Policy returns the configured policy or the default one
func (l *Loader) Policy(name string) Queue {
	if q, ok := l.queues[name]; ok {
		return *q
	}
	return DefaultQueuePolicy(name, l.cfg)
}

// List returns all loaded queue policies sorted by name
func (l *Loader) List() []*Queue {
	queues := make([]*Queue, 0, len(l.queues))
	for _, q := range l.queues {
		queues = append(queues, q)
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i].Name < queues[j].Name })
	return queues
}

// Exists checks if a queue is configured
func (l *Loader) Exists(name string) bool {
	_, exists := l.queues[name]
	return exists
}

// Apply registers every node type override on the router
func (l *Loader) Apply(r *Router) error {
	for _, q := range l.List() {
		for _, t := range q.NodeTypes {
			if err := r.Register(t, q.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Queues returns the names every worker process should serve: the router table plus configured queues
func (l *Loader) Queues(r *Router) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range r.Queues() {
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, q := range l.List() {
		if _, ok := seen[q.Name]; !ok {
			out = append(out, q.Name)
		}
	}
	sort.Strings(out)
	return out
}
