package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/webhook"
)

// Repository is an in-memory webhook.RegistrationStore
type Repository struct {
	mu   sync.RWMutex
	regs map[string]webhook.Registration
}

func NewRepository() *Repository {
	return &Repository{regs: make(map[string]webhook.Registration)}
}

func (r *Repository) GetRegistration(ctx context.Context, id string) (webhook.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.regs[id]
	if !ok {
		return webhook.Registration{}, fmt.Errorf("%s: %w", id, webhook.ErrNotFound)
	}
	return reg, nil
}

func (r *Repository) ListRegistrations(ctx context.Context, tenantID string) ([]webhook.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []webhook.Registration
	for _, reg := range r.regs {
		if reg.TenantID == tenantID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) SaveRegistration(ctx context.Context, reg webhook.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.regs[reg.ID]; ok {
		reg.LastTriggeredAt = prev.LastTriggeredAt
		reg.CreatedAt = prev.CreatedAt
	}
	r.regs[reg.ID] = reg
	return nil
}

func (r *Repository) UpdateLastTriggeredAt(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, webhook.ErrNotFound)
	}
	reg.LastTriggeredAt = at
	r.regs[id] = reg
	return nil
}

func (r *Repository) SetRegistrationStatus(ctx context.Context, id string, status webhook.RegistrationStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, webhook.ErrNotFound)
	}
	reg.Status = status
	r.regs[id] = reg
	return nil
}

func (r *Repository) DeactivateWorkflow(ctx context.Context, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, reg := range r.regs {
		if reg.WorkflowID == workflowID {
			reg.Status = webhook.RegistrationInactive
			r.regs[id] = reg
		}
	}
	return nil
}
