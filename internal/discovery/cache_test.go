package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/tokenresolver/internal/httpretry"
	"github.com/giantswarm/tokenresolver/internal/testing/mock"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

type fixture struct {
	provider *mock.Provider
	clock    *mock.Clock
	logs     *bytes.Buffer
	cache    *Cache
}

func newFixture(t *testing.T, cfg mock.ProviderConfig) *fixture {
	t.Helper()

	p := mock.NewProvider(cfg)
	t.Cleanup(p.Close)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	clk := mock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	return &fixture{
		provider: p,
		clock:    clk,
		logs:     logs,
		cache: New(
			WithClock(clk),
			WithLogger(logger),
			WithCaller(httpretry.New(httpretry.WithHTTPClient(p.Client()), httpretry.WithLogger(logger))),
		),
	}
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.BaseDelay = time.Millisecond
	return opts
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 24*time.Hour, opts.CacheTTL)
	assert.True(t, opts.ValidateGrantTypes)
	assert.True(t, opts.ValidateIssuerName)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, opts.BaseDelay)
}

func TestGetDiscovery_CachedWithinTTL(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	opts := fastOptions()
	opts.CacheTTL = time.Hour

	first, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, f.provider.URL()+"/connect/token", first.TokenEndpoint)
	assert.Equal(t, f.clock.Now().Add(time.Hour), first.ExpiresAt)

	f.clock.Advance(59 * time.Minute)
	second, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, f.provider.DiscoveryRequests())

	// An entry whose expiry equals now is stale.
	f.clock.Advance(time.Minute)
	third, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.True(t, third.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, 2, f.provider.DiscoveryRequests())
	assert.Equal(t, 1, f.cache.Len())
}

func TestGetDiscovery_CallerChangesDoNotLeakIntoCache(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	opts := fastOptions()

	first, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	require.NotNil(t, first)

	first.TokenEndpoint = "https://attacker.example.com/token"
	for i := range first.TokenEndpointAuthMethodsSupported {
		first.TokenEndpointAuthMethodsSupported[i] = oauth.AuthMethodNone
	}
	first.GrantTypesSupported = nil

	second, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	assert.Equal(t, f.provider.URL()+"/connect/token", second.TokenEndpoint)
	assert.True(t, second.SupportsAuthMethod(oauth.AuthMethodClientSecretPost))
	assert.True(t, second.SupportsGrantType(oauth.GrantTypeClientCredentials))
	assert.Equal(t, 1, f.provider.DiscoveryRequests())
}

func TestGetDiscovery_GrantTypesValidation(t *testing.T) {
	t.Run("rejected when enabled", func(t *testing.T) {
		f := newFixture(t, mock.ProviderConfig{})
		f.provider.UpdateDiscovery(func(doc *oauth.DiscoveryDocument) {
			doc.GrantTypesSupported = nil
		})

		doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
		require.NoError(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, 0, f.cache.Len())
		assert.Contains(t, f.logs.String(), "grant_types_supported")
		assert.Contains(t, f.logs.String(), "level=ERROR")
	})

	t.Run("accepted when disabled", func(t *testing.T) {
		f := newFixture(t, mock.ProviderConfig{})
		f.provider.UpdateDiscovery(func(doc *oauth.DiscoveryDocument) {
			doc.GrantTypesSupported = []string{}
		})

		opts := fastOptions()
		opts.ValidateGrantTypes = false

		doc, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Empty(t, doc.GrantTypesSupported)
	})
}

func TestGetDiscovery_IssuerMustMatchExactly(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	withSlash := f.provider.URL() + "/"

	doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), withSlash)
	require.NoError(t, err)
	assert.Nil(t, doc, "issuer without trailing slash must not match an address with one")
	assert.Contains(t, f.logs.String(), "does not match provider address")
	assert.Equal(t, 1, f.provider.DiscoveryRequests(), "URL is still built without a double slash")

	opts := fastOptions()
	opts.ValidateIssuerName = false
	doc, err = f.cache.GetDiscovery(context.Background(), opts, withSlash)
	require.NoError(t, err)
	require.NotNil(t, doc)

	// The address is the cache key as given.
	_, err = f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	assert.Equal(t, 3, f.provider.DiscoveryRequests())
	assert.Equal(t, 2, f.cache.Len())
}

func TestGetDiscovery_AuthMethodsAlwaysRequired(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	f.provider.UpdateDiscovery(func(doc *oauth.DiscoveryDocument) {
		doc.TokenEndpointAuthMethodsSupported = nil
	})

	opts := fastOptions()
	opts.ValidateGrantTypes = false
	opts.ValidateIssuerName = false

	doc, err := f.cache.GetDiscovery(context.Background(), opts, f.provider.URL())
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, f.logs.String(), "token_endpoint_auth_methods_supported")
}

func TestGetDiscovery_InvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLog string
	}{
		{"null", "null", "discovery document is empty"},
		{"malformed", "{not json", "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mock.ProviderConfig{})
			f.provider.SetRawDiscovery(tt.body)

			doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
			require.NoError(t, err)
			assert.Nil(t, doc)
			assert.Contains(t, f.logs.String(), tt.wantLog)
		})
	}
}

func TestGetDiscovery_ErrorStatusNotCached(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	f.provider.FailDiscovery(1, http.StatusNotFound)

	doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, f.logs.String(), "status=404")

	doc, err = f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, 2, f.provider.DiscoveryRequests())
}

func TestGetDiscovery_RetriesTransientStatus(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	f.provider.FailDiscovery(2, http.StatusBadGateway)

	doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 3, f.provider.DiscoveryRequests())
}

func TestGetDiscovery_TransportFailureSurfaced(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	f.provider.FailDiscovery(3, http.StatusServiceUnavailable)

	doc, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpretry.ErrRetryable)
	assert.Equal(t, 0, f.cache.Len())
}

func TestGetDiscovery_CancelledContext(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := f.cache.GetDiscovery(ctx, fastOptions(), f.provider.URL())
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.cache.Len())
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})

	_, err := f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	f.cache.Invalidate(f.provider.URL())
	assert.Equal(t, 0, f.cache.Len())

	_, err = f.cache.GetDiscovery(context.Background(), fastOptions(), f.provider.URL())
	require.NoError(t, err)
	assert.Equal(t, 2, f.provider.DiscoveryRequests())
}

func TestPrefetch(t *testing.T) {
	a := newFixture(t, mock.ProviderConfig{})
	b := mock.NewProvider(mock.ProviderConfig{})
	defer b.Close()

	// Both providers are plain http, so one client reaches either of them.
	err := a.cache.Prefetch(context.Background(), fastOptions(), a.provider.URL(), b.URL())
	require.NoError(t, err)
	assert.Equal(t, 2, a.cache.Len())
	assert.Equal(t, 1, a.provider.DiscoveryRequests())
	assert.Equal(t, 1, b.DiscoveryRequests())
}

func TestPrefetch_ReportsInvalidProvider(t *testing.T) {
	f := newFixture(t, mock.ProviderConfig{})
	f.provider.UpdateDiscovery(func(doc *oauth.DiscoveryDocument) {
		doc.Issuer = "https://elsewhere.example.com"
	})

	err := f.cache.Prefetch(context.Background(), fastOptions(), f.provider.URL())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}
