// Package discovery fetches, validates and caches OpenID provider metadata.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/tokenresolver/internal/clock"
	"github.com/giantswarm/tokenresolver/internal/httpretry"
	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

const (
	// DefaultCacheTTL is how long a validated document is served from memory.
	DefaultCacheTTL = 24 * time.Hour

	// prefetchConcurrency bounds concurrent fetches in Prefetch.
	prefetchConcurrency = 4
)

// Options controls fetching and validation for one GetDiscovery call.
type Options struct {
	CacheTTL time.Duration

	// ValidateGrantTypes requires a non-empty grant_types_supported.
	ValidateGrantTypes bool

	// ValidateIssuerName requires issuer to equal the provider address exactly.
	ValidateIssuerName bool

	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultOptions returns a 24h TTL with both validations enabled and the
// default retry budget.
func DefaultOptions() Options {
	return Options{
		CacheTTL:           DefaultCacheTTL,
		ValidateGrantTypes: true,
		ValidateIssuerName: true,
		MaxAttempts:        httpretry.DefaultMaxAttempts,
		BaseDelay:          httpretry.DefaultBaseDelay,
	}
}

// Cache holds validated discovery documents keyed by provider address.
//
// There is no per-key fetch coordination: concurrent misses for the same
// address may each hit the network, and the last successful fetch wins.
type Cache struct {
	caller *httpretry.Caller
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*oauth.DiscoveryDocument
}

// Option configures a Cache.
type Option func(*Cache)

// WithCaller sets the retrying HTTP caller.
func WithCaller(caller *httpretry.Caller) Option {
	return func(c *Cache) {
		c.caller = caller
	}
}

// WithClock sets the time source for expiry.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		logger:  logging.Logger("Discovery"),
		entries: make(map[string]*oauth.DiscoveryDocument),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.clock = clock.OrReal(c.clock)
	if c.caller == nil {
		c.caller = httpretry.New(httpretry.WithLogger(c.logger))
	}

	return c
}

// GetDiscovery returns the document for providerAddress, fetching and
// validating it when there is no unexpired cached copy.
//
// A document that fails validation is logged and reported as nil with a nil
// error. Transport failures that survive the retry budget are returned.
// Every call returns its own copy of the document.
func (c *Cache) GetDiscovery(ctx context.Context, opts Options, providerAddress string) (*oauth.DiscoveryDocument, error) {
	if doc := c.lookup(providerAddress); doc != nil {
		return doc.Clone(), nil
	}

	doc, err := c.fetch(ctx, opts, providerAddress)
	if err != nil || doc == nil {
		return nil, err
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	doc.ExpiresAt = c.clock.Now().Add(ttl)

	c.mu.Lock()
	c.entries[providerAddress] = doc
	c.mu.Unlock()

	return doc.Clone(), nil
}

func (c *Cache) lookup(providerAddress string) *oauth.DiscoveryDocument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.entries[providerAddress]
	if !ok || !doc.ExpiresAt.After(c.clock.Now()) {
		return nil
	}
	return doc
}

func (c *Cache) fetch(ctx context.Context, opts Options, providerAddress string) (*oauth.DiscoveryDocument, error) {
	uri := strings.TrimSuffix(providerAddress, "/") + oauth.WellKnownOpenIDConfigurationPath

	c.logger.Debug("Fetching discovery document", "provider", providerAddress)

	resp, err := c.caller.SendWithRetry(ctx, httpretry.Call{
		Method:      http.MethodGet,
		URI:         uri,
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.BaseDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document from %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Discovery endpoint returned an error status",
			"provider", providerAddress,
			"status", resp.StatusCode)
		return nil, nil
	}

	var doc *oauth.DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		c.logger.Error("Discovery document is not valid JSON",
			"provider", providerAddress,
			"error", err)
		return nil, nil
	}

	if err := validate(doc, opts, providerAddress); err != nil {
		c.logger.Error(err.Error(), "provider", providerAddress)
		return nil, nil
	}

	return doc, nil
}

func validate(doc *oauth.DiscoveryDocument, opts Options, providerAddress string) error {
	if doc == nil {
		return errors.New("discovery document is empty")
	}
	if opts.ValidateGrantTypes && len(doc.GrantTypesSupported) == 0 {
		return errors.New("discovery document has no grant_types_supported")
	}
	if opts.ValidateIssuerName && doc.Issuer != providerAddress {
		return fmt.Errorf("discovery document issuer %q does not match provider address", doc.Issuer)
	}
	if len(doc.TokenEndpointAuthMethodsSupported) == 0 {
		return errors.New("discovery document has no token_endpoint_auth_methods_supported")
	}
	return nil
}

// Invalidate drops the cached document for providerAddress.
func (c *Cache) Invalidate(providerAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, providerAddress)
}

// Len returns the number of cached documents, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prefetch warms the cache for several providers concurrently. It returns
// the first transport error, or an error naming a provider whose document
// failed validation.
func (c *Cache) Prefetch(ctx context.Context, opts Options, providerAddresses ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	for _, addr := range providerAddresses {
		g.Go(func() error {
			doc, err := c.GetDiscovery(ctx, opts, addr)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("discovery document for %s failed validation", addr)
			}
			return nil
		})
	}

	return g.Wait()
}
