package resolver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// ClientResolver picks the client registration for the current request.
type ClientResolver interface {
	// Resolve returns the client configuration and the authentication
	// scheme it signs in with.
	Resolve(ctx context.Context) (oauth.ClientConfig, string, error)
}

type requestKey struct{}

// WithRequest binds the inbound request to ctx for host-based client
// resolution.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFromContext returns the request bound with WithRequest.
func RequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	return r, ok && r != nil
}

// FixedClientResolver always resolves to one client.
type FixedClientResolver struct {
	Config oauth.ClientConfig
}

// Resolve implements ClientResolver.
func (f FixedClientResolver) Resolve(context.Context) (oauth.ClientConfig, string, error) {
	return f.Config, f.Config.Scheme, nil
}

// HostClientResolver maps the request host to a client, for deployments
// that serve several tenants from one process.
type HostClientResolver struct {
	clients map[string]oauth.ClientConfig
}

// NewHostClientResolver creates a resolver from host to client. Hosts are
// matched case-insensitively; a host with a port falls back to the entry
// without one.
func NewHostClientResolver(clients map[string]oauth.ClientConfig) *HostClientResolver {
	normalized := make(map[string]oauth.ClientConfig, len(clients))
	for host, cfg := range clients {
		normalized[strings.ToLower(host)] = cfg
	}
	return &HostClientResolver{clients: normalized}
}

// Resolve implements ClientResolver. It fails with ErrUnknownHost when the
// context carries no request or the host is not mapped.
func (h *HostClientResolver) Resolve(ctx context.Context) (oauth.ClientConfig, string, error) {
	r, ok := RequestFromContext(ctx)
	if !ok {
		return oauth.ClientConfig{}, "", fmt.Errorf("%w: no request in context", ErrUnknownHost)
	}

	host := strings.ToLower(r.Host)
	if cfg, ok := h.clients[host]; ok {
		return cfg, cfg.Scheme, nil
	}
	if hostname, _, err := net.SplitHostPort(host); err == nil {
		if cfg, ok := h.clients[hostname]; ok {
			return cfg, cfg.Scheme, nil
		}
	}

	return oauth.ClientConfig{}, "", fmt.Errorf("%w: %s", ErrUnknownHost, host)
}
