package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/job"
)

// ProvenanceStore is an in-memory job.ProvenanceStore
type ProvenanceStore struct {
	mu   sync.RWMutex
	rows map[string]job.Provenance
}

func NewProvenanceStore() *ProvenanceStore {
	return &ProvenanceStore{rows: make(map[string]job.Provenance)}
}

func (s *ProvenanceStore) SaveProvenance(ctx context.Context, p job.Provenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.rows[p.JobID]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	s.rows[p.JobID] = p
	return nil
}

func (s *ProvenanceStore) UpdateProvenanceStatus(ctx context.Context, jobID string, status string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rows[jobID]
	if !ok {
		return fmt.Errorf("%s: %w", jobID, job.ErrNotFound)
	}
	p.Status = status
	p.Error = errMsg
	p.UpdatedAt = time.Now()
	s.rows[jobID] = p
	return nil
}

func (s *ProvenanceStore) GetProvenance(ctx context.Context, jobID string) (job.Provenance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[jobID]
	if !ok {
		return job.Provenance{}, fmt.Errorf("%s: %w", jobID, job.ErrNotFound)
	}
	return p, nil
}
