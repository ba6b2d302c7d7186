// Package registry keeps the set of webhook endpoints that receive context notifications.
package registry

import (
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	appErr "github.com/samims/ctxrelay/internal/errors"
)

// Registry is a deduplicated, concurrency-safe set of subscriber endpoints.
// Writers copy the current slice and swap it in; Snapshot never takes the lock,
// so readers never wait on Register.
type Registry struct {
	mu        sync.Mutex
	index     map[string]struct{}
	endpoints atomic.Pointer[[]string]
}

func New() *Registry {
	r := &Registry{index: make(map[string]struct{})}
	empty := []string{}
	r.endpoints.Store(&empty)
	return r
}

// Register adds endpoint to the set. Registering an endpoint twice is a no-op.
// It returns an error matching errors.ErrValidation unless endpoint is an absolute
// http or https URL.
func (r *Registry) Register(endpoint string) error {
	normalized, err := Normalize(endpoint)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[normalized]; exists {
		return nil
	}

	current := *r.endpoints.Load()
	next := make([]string, len(current), len(current)+1)
	copy(next, current)
	next = append(next, normalized)

	r.index[normalized] = struct{}{}
	r.endpoints.Store(&next)
	return nil
}

// Snapshot returns a copy of the endpoints registered so far in registration order.
func (r *Registry) Snapshot() []string {
	return slices.Clone(*r.endpoints.Load())
}

func (r *Registry) Len() int {
	return len(*r.endpoints.Load())
}

// Normalize validates endpoint and returns it trimmed of surrounding whitespace.
func Normalize(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", appErr.NewValidation("subscriber endpoint is required")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", appErr.NewValidation("subscriber endpoint %q is malformed: %v", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", appErr.NewValidation("subscriber endpoint %q must use http or https", endpoint)
	}
	if u.Host == "" {
		return "", appErr.NewValidation("subscriber endpoint %q has no host", endpoint)
	}
	return endpoint, nil
}
