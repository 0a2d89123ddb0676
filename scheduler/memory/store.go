package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/scheduler"
)

// Store keeps scheduled events in a map; used when no DATABASE_URL is configured
type Store struct {
	mu     sync.Mutex
	events map[string]scheduler.Event
}

func NewStore() *Store {
	return &Store{events: make(map[string]scheduler.Event)}
}

func (s *Store) Get(ctx context.Context, id string) (scheduler.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return scheduler.Event{}, fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	return ev, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]scheduler.Event, error) {
	return s.filter(func(ev scheduler.Event) bool {
		return tenantID == "" || ev.TenantID == tenantID
	}, byCreated), nil
}

func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]scheduler.Event, error) {
	out := s.filter(func(ev scheduler.Event) bool {
		return ev.Status == scheduler.Active && !ev.NextRun.IsZero() && !ev.NextRun.After(now)
	}, byNextRun)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Uninitialized(ctx context.Context) ([]scheduler.Event, error) {
	return s.filter(func(ev scheduler.Event) bool {
		return ev.Status == scheduler.Active && ev.NextRun.IsZero()
	}, byCreated), nil
}

func (s *Store) Save(ctx context.Context, ev scheduler.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.events[ev.ID]; ok {
		if ev.LastRun.IsZero() {
			ev.LastRun = prev.LastRun
		}
		if ev.NextRun.IsZero() {
			ev.NextRun = prev.NextRun
		}
		ev.CreatedAt = prev.CreatedAt
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Status == 0 {
		ev.Status = scheduler.Active
	}
	s.events[ev.ID] = ev
	return nil
}

func (s *Store) Claim(ctx context.Context, id string, now, next time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return false, fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	if ev.Status != scheduler.Active || ev.NextRun.IsZero() || ev.NextRun.After(now) {
		return false, nil
	}
	ev.LastRun = now
	ev.NextRun = next
	s.events[id] = ev
	return true, nil
}

func (s *Store) SetNextRun(ctx context.Context, id string, next time.Time) error {
	return s.update(id, func(ev *scheduler.Event) { ev.NextRun = next })
}

func (s *Store) SetStatus(ctx context.Context, id string, status scheduler.Status, errMsg string) error {
	return s.update(id, func(ev *scheduler.Event) {
		ev.Status = status
		ev.Error = errMsg
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

func (s *Store) update(id string, fn func(*scheduler.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	fn(&ev)
	s.events[id] = ev
	return nil
}

func byCreated(a, b scheduler.Event) bool { return a.CreatedAt.Before(b.CreatedAt) }
func byNextRun(a, b scheduler.Event) bool { return a.NextRun.Before(b.NextRun) }

func (s *Store) filter(keep func(scheduler.Event) bool, less func(a, b scheduler.Event) bool) []scheduler.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []scheduler.Event
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out
}
