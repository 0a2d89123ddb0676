package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned when no adapter is registered for a provider id
var ErrUnknownProvider = errors.New("unknown provider")

/* Adapter isolates the quirks of one webhook provider
 * Every method is pure: no I/O, no shared state, safe for concurrent use
 */
type Adapter interface {
	// Provider returns the id used in the ingestion path, e.g. "slack"
	Provider() string
	// Normalize never fails; unreadable payloads become an UnknownEvent with an empty data bag
	Normalize(raw []byte, headers http.Header, tenantID string) Event
	// VerifySignature returns false, never an error, when headers are missing or stale
	VerifySignature(payload []byte, headers http.Header, secret string) bool
	// HandleChallenge detects verification handshakes; IsChallenge is false for regular deliveries
	HandleChallenge(query url.Values, body []byte, headers http.Header) Challenge
}

// Challenge is the answer to a platform handshake
type Challenge struct {
	IsChallenge bool
	Response    string
	ContentType string
	// Denied is set when the handshake carries a verify token that does not match
	Denied bool
}

// Registry maps provider ids to adapters; ids are case insensitive
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.adapters[strings.ToLower(a.Provider())] = a
	}
	return r
}

// Register adds or replaces an adapter
func (r *Registry) Register(a Adapter) error {
	if a == nil || strings.TrimSpace(a.Provider()) == "" {
		return fmt.Errorf("adapter must have a provider id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(a.Provider())] = a
	return nil
}

// Get resolves the adapter for a provider id
func (r *Registry) Get(provider string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider, ErrUnknownProvider)
	}
	return a, nil
}

// Providers lists registered provider ids, sorted
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
