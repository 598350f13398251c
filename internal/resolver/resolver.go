// Package resolver obtains, caches and refreshes OAuth access tokens.
//
// A single algorithm serves both the session-bound form used by
// browser-facing clients and the process-cached form used for
// service-to-service calls. The forms differ only in their Strategy: where
// the current token set lives, how client configuration is found, which
// grant is sent and where the result is written back.
//
// Expected conditions (no session, no refresh token, a provider that fails
// validation, a rejected token request) are logged and reported as an empty
// token with a nil error. Configuration defects and transport failures that
// survive the retry budget are returned as errors.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/giantswarm/tokenresolver/internal/clock"
	"github.com/giantswarm/tokenresolver/internal/discovery"
	"github.com/giantswarm/tokenresolver/internal/httpretry"
	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
	"github.com/giantswarm/tokenresolver/pkg/sanitize"
)

const (
	// maxErrorBodySize caps how much of a failed token response is read for logging.
	maxErrorBodySize = 4096

	maxErrorCodeLen = 64
)

// TokenSet is the token state a Strategy hands to the resolver.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Strategy supplies the parts of token resolution that differ between the
// session-bound and process-cached forms.
type Strategy interface {
	// CurrentTokens returns the current token set. ok is false when there is
	// nothing to resolve against, such as no active session; the strategy
	// logs why.
	CurrentTokens(ctx context.Context, clientName string) (tokens TokenSet, ok bool, err error)

	// RequiresRefreshToken reports whether a refresh token must be present
	// before the token endpoint is called.
	RequiresRefreshToken() bool

	// ClientConfig resolves the client registration. A nil config with a nil
	// error means none was found and the strategy has logged it.
	ClientConfig(ctx context.Context, clientName string, explicit *oauth.ClientConfig) (*oauth.ClientConfig, error)

	// Validate checks the fields this form needs.
	Validate(cfg oauth.ClientConfig) error

	// Grant builds the token request form.
	Grant(cfg oauth.ClientConfig, current TokenSet) url.Values

	// Store writes a successful token response back.
	Store(ctx context.Context, clientName string, current TokenSet, resp oauth.TokenResponse, expiresAt time.Time) error
}

// Resolver runs the token resolution algorithm for one Strategy.
type Resolver struct {
	strategy         Strategy
	discovery        *discovery.Cache
	discoveryOptions discovery.Options
	caller           *httpretry.Caller
	clock            clock.Clock
	logger           *slog.Logger
	maxAttempts      int
	baseDelay        time.Duration
}

type settings struct {
	discovery        *discovery.Cache
	discoveryOptions discovery.Options
	caller           *httpretry.Caller
	httpClient       *http.Client
	clock            clock.Clock
	logger           *slog.Logger
	maxAttempts      int
	baseDelay        time.Duration
}

// Option configures a resolver.
type Option func(*settings)

// WithClock sets the time source for expiry decisions.
func WithClock(clk clock.Clock) Option {
	return func(s *settings) {
		s.clock = clk
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used for discovery and token requests when
// no caller is given.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

// WithCaller sets the retrying caller used for token requests, and for
// discovery when no discovery cache is given.
func WithCaller(caller *httpretry.Caller) Option {
	return func(s *settings) {
		s.caller = caller
	}
}

// WithDiscovery shares a discovery cache between resolvers.
func WithDiscovery(cache *discovery.Cache) Option {
	return func(s *settings) {
		s.discovery = cache
	}
}

// WithDiscoveryOptions sets the options passed to every discovery lookup.
func WithDiscoveryOptions(opts discovery.Options) Option {
	return func(s *settings) {
		s.discoveryOptions = opts
	}
}

// WithRetry sets the attempt budget and base backoff for token requests.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *settings) {
		s.maxAttempts = maxAttempts
		s.baseDelay = baseDelay
	}
}

func newSettings(subsystem string, opts []Option) *settings {
	s := &settings{
		discoveryOptions: discovery.DefaultOptions(),
		maxAttempts:      httpretry.DefaultMaxAttempts,
		baseDelay:        httpretry.DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.Logger(subsystem)
	}
	s.clock = clock.OrReal(s.clock)
	if s.caller == nil {
		callerOpts := []httpretry.Option{httpretry.WithLogger(s.logger)}
		if s.httpClient != nil {
			callerOpts = append(callerOpts, httpretry.WithHTTPClient(s.httpClient))
		}
		s.caller = httpretry.New(callerOpts...)
	}
	if s.discovery == nil {
		s.discovery = discovery.New(
			discovery.WithCaller(s.caller),
			discovery.WithClock(s.clock),
			discovery.WithLogger(s.logger),
		)
	}
	return s
}

// New creates a resolver for a custom strategy.
func New(strategy Strategy, opts ...Option) *Resolver {
	return newResolver(strategy, newSettings("Resolver", opts))
}

func newResolver(strategy Strategy, s *settings) *Resolver {
	return &Resolver{
		strategy:         strategy,
		discovery:        s.discovery,
		discoveryOptions: s.discoveryOptions,
		caller:           s.caller,
		clock:            s.clock,
		logger:           s.logger,
		maxAttempts:      s.maxAttempts,
		baseDelay:        s.baseDelay,
	}
}

// Discovery returns the discovery cache the resolver uses.
func (r *Resolver) Discovery() *discovery.Cache {
	return r.discovery
}

// GetClientToken returns a usable access token for clientName, refreshing or
// re-authenticating when the current one has expired. explicit overrides
// the strategy's client configuration lookup.
//
// An empty token with a nil error means no token could be obtained for an
// expected reason, which has been logged.
func (r *Resolver) GetClientToken(ctx context.Context, clientName string, explicit *oauth.ClientConfig) (string, error) {
	current, ok, err := r.strategy.CurrentTokens(ctx, clientName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	cached := oauth.CachedAccessToken{AccessToken: current.AccessToken, ExpiresAt: current.ExpiresAt}
	if cached.Valid(r.clock.Now()) {
		return current.AccessToken, nil
	}

	if r.strategy.RequiresRefreshToken() && current.RefreshToken == "" {
		r.logger.Info("Refresh token not found", "client", clientName)
		return "", nil
	}

	cfg, err := r.strategy.ClientConfig(ctx, clientName, explicit)
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return "", nil
	}

	if err := r.strategy.Validate(*cfg); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Client == "" {
			cfgErr.Client = clientName
		}
		return "", err
	}

	doc, err := r.discovery.GetDiscovery(ctx, r.discoveryOptions, cfg.Authority)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", nil
	}

	if !doc.SupportsAuthMethod(oauth.AuthMethodClientSecretPost) {
		r.logger.Error("Provider does not support client_secret_post token authentication",
			"client", clientName,
			"provider", cfg.Authority,
			"supported", doc.TokenEndpointAuthMethodsSupported)
		return "", nil
	}
	if doc.TokenEndpoint == "" {
		r.logger.Error("Provider has no token endpoint", "client", clientName, "provider", cfg.Authority)
		return "", nil
	}

	tokenResp, err := r.requestToken(ctx, clientName, doc.TokenEndpoint, r.strategy.Grant(*cfg, current))
	if err != nil || tokenResp == nil {
		return "", err
	}

	expiresAt := r.clock.Now().Add(tokenResp.Lifetime())
	if err := r.strategy.Store(ctx, clientName, current, *tokenResp, expiresAt); err != nil {
		return "", fmt.Errorf("failed to store token for %s: %w", clientName, err)
	}

	r.logger.Debug("Obtained access token",
		"client", clientName,
		"expires_at", expiresAt)

	return tokenResp.AccessToken, nil
}

// requestToken posts form to the token endpoint. A nil response with a nil
// error means the provider answered but no token could be used.
func (r *Resolver) requestToken(ctx context.Context, clientName, tokenEndpoint string, form url.Values) (*oauth.TokenResponse, error) {
	resp, err := r.caller.SendWithRetry(ctx, httpretry.Call{
		Method:      http.MethodPost,
		URI:         tokenEndpoint,
		Body:        form,
		MaxAttempts: r.maxAttempts,
		BaseDelay:   r.baseDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("token request for %s failed: %w", clientName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		attrs := []any{"client", clientName, "status", resp.StatusCode}
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&oauthErr) == nil && oauthErr.Error != "" {
			attrs = append(attrs,
				"error", sanitize.SingleLine(oauthErr.Error, maxErrorCodeLen),
				"error_description", sanitize.SingleLine(oauthErr.Description, sanitize.DefaultMaxLen))
		}
		r.logger.Error("Token endpoint returned an error status", attrs...)
		return nil, nil
	}

	var tokenResp *oauth.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil || tokenResp == nil {
		r.logger.Error("Token endpoint returned an invalid token", "client", clientName)
		return nil, nil
	}
	if tokenResp.AccessToken == "" {
		r.logger.Error("Token endpoint returned no token", "client", clientName)
		return nil, nil
	}
	if tokenResp.ExpiresIn <= 0 {
		r.logger.Error("Token endpoint returned a token without a positive expires_in",
			"client", clientName,
			"expires_in", tokenResp.ExpiresIn)
		return nil, nil
	}

	return tokenResp, nil
}

// requireFields returns a ConfigError for the first empty field.
func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return &ConfigError{Field: f[0]}
		}
	}
	return nil
}
