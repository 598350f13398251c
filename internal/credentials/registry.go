// Package credentials resolves client registrations for the
// service-to-service token resolver.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// Store looks client registrations up in an external system. A nil config
// with a nil error means the store has nothing for that client.
type Store interface {
	Lookup(ctx context.Context, clientName string) (*oauth.ClientConfig, error)
}

// Source tells where a registration came from.
type Source int

const (
	// SourceNone means the client is not registered and no store is configured.
	SourceNone Source = iota
	// SourceStatic means the client was registered at startup.
	SourceStatic
	// SourceStore means the external store was consulted.
	SourceStore
)

func (s Source) String() string {
	switch s {
	case SourceStatic:
		return "static"
	case SourceStore:
		return "store"
	default:
		return "none"
	}
}

// Registry combines static registrations with an optional Store. A
// registration found in the store is kept for the life of the process and
// the store is not asked about that client again.
type Registry struct {
	store Store

	mu     sync.RWMutex
	static map[string]oauth.ClientConfig
	stored map[string]oauth.ClientConfig
}

// NewRegistry creates a registry. store may be nil.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		static: make(map[string]oauth.ClientConfig),
		stored: make(map[string]oauth.ClientConfig),
	}
}

// Register adds or replaces a static registration.
func (r *Registry) Register(clientName string, cfg oauth.ClientConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[clientName] = cfg
}

// HasStore reports whether an external store is configured.
func (r *Registry) HasStore() bool {
	return r.store != nil
}

// Resolve returns the configuration for clientName and where it came from.
//
// A nil config with SourceNone means the client was never registered and
// there is no store; a nil config with SourceStore means the store had
// nothing. Store failures are returned as errors.
func (r *Registry) Resolve(ctx context.Context, clientName string) (*oauth.ClientConfig, Source, error) {
	r.mu.RLock()
	if cfg, ok := r.static[clientName]; ok {
		r.mu.RUnlock()
		return &cfg, SourceStatic, nil
	}
	if cfg, ok := r.stored[clientName]; ok {
		r.mu.RUnlock()
		return &cfg, SourceStore, nil
	}
	r.mu.RUnlock()

	if r.store == nil {
		return nil, SourceNone, nil
	}

	cfg, err := r.store.Lookup(ctx, clientName)
	if err != nil {
		return nil, SourceStore, fmt.Errorf("failed to look up client %s: %w", clientName, err)
	}
	if cfg == nil {
		return nil, SourceStore, nil
	}

	r.mu.Lock()
	r.stored[clientName] = *cfg
	r.mu.Unlock()

	logging.Info("Credentials", "Loaded configuration for client %s from credentials store", clientName)

	out := *cfg
	return &out, SourceStore, nil
}
