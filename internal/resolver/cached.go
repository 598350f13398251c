package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/giantswarm/tokenresolver/internal/credentials"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// CachedResolver is the process-cached form: tokens are obtained with the
// client_credentials grant and kept in a TokenCache keyed by client name.
type CachedResolver struct {
	*Resolver
	cache    *TokenCache
	registry *credentials.Registry
}

// NewCachedResolver creates a process-cached resolver. A nil registry has no
// registrations and no store; a nil cache gets a fresh one on the resolver's
// clock.
func NewCachedResolver(registry *credentials.Registry, cache *TokenCache, opts ...Option) *CachedResolver {
	s := newSettings("Resolver", opts)
	if registry == nil {
		registry = credentials.NewRegistry(nil)
	}
	if cache == nil {
		cache = NewTokenCache(s.clock)
	}

	strategy := &cachedStrategy{
		cache:    cache,
		registry: registry,
		logger:   s.logger,
	}

	return &CachedResolver{
		Resolver: newResolver(strategy, s),
		cache:    cache,
		registry: registry,
	}
}

// ClearClientToken evicts the cached token for clientName so that the next
// GetClientToken authenticates again. Call it after a downstream API
// rejected the token with 401.
func (r *CachedResolver) ClearClientToken(clientName string) {
	r.cache.Evict(clientName)
	r.logger.Debug("Cleared cached access token", "client", clientName)
}

// Cache returns the token cache.
func (r *CachedResolver) Cache() *TokenCache {
	return r.cache
}

type cachedStrategy struct {
	cache    *TokenCache
	registry *credentials.Registry
	logger   *slog.Logger
}

func (s *cachedStrategy) CurrentTokens(_ context.Context, clientName string) (TokenSet, bool, error) {
	tok, _ := s.cache.Get(clientName)
	return TokenSet{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt}, true, nil
}

func (s *cachedStrategy) RequiresRefreshToken() bool {
	return false
}

func (s *cachedStrategy) ClientConfig(ctx context.Context, clientName string, explicit *oauth.ClientConfig) (*oauth.ClientConfig, error) {
	if explicit != nil {
		cfg := *explicit
		return &cfg, nil
	}

	cfg, source, err := s.registry.Resolve(ctx, clientName)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	switch source {
	case credentials.SourceStore:
		s.logger.Error("Credentials store returned no configuration", "client", clientName)
	default:
		s.logger.Error("Client is not registered and no credentials store is configured", "client", clientName)
	}
	return nil, nil
}

func (s *cachedStrategy) Validate(cfg oauth.ClientConfig) error {
	return requireFields(
		[2]string{"client id", cfg.ClientID},
		[2]string{"client secret", cfg.ClientSecret},
		[2]string{"authority", cfg.Authority},
		[2]string{"scope", cfg.Scope},
	)
}

func (s *cachedStrategy) Grant(cfg oauth.ClientConfig, _ TokenSet) url.Values {
	return url.Values{
		"grant_type":    {oauth.GrantTypeClientCredentials},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"scope":         {cfg.Scope},
	}
}

func (s *cachedStrategy) Store(_ context.Context, clientName string, _ TokenSet, resp oauth.TokenResponse, expiresAt time.Time) error {
	s.cache.Set(clientName, oauth.CachedAccessToken{
		AccessToken: resp.AccessToken,
		ExpiresAt:   expiresAt,
	})
	return nil
}
