package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// ProviderConfig configures the mock OpenID provider.
type ProviderConfig struct {
	// Issuer overrides the advertised issuer. Defaults to the server URL.
	Issuer string

	// ClientID is the expected client id. Empty accepts any client.
	ClientID string

	// ClientSecret is the expected secret for client_credentials.
	ClientSecret string

	// RefreshToken, when set, is the only refresh token accepted until it is
	// rotated.
	RefreshToken string

	// RotateRefreshToken issues a new refresh token on every refresh.
	RotateRefreshToken bool

	// TokenLifetime is the advertised expires_in. Defaults to one hour.
	TokenLifetime time.Duration
}

type failure struct {
	remaining int
	status    int
}

// Provider is a minimal OpenID provider serving discovery and a token
// endpoint over httptest.
type Provider struct {
	config ProviderConfig
	server *httptest.Server

	mu                sync.Mutex
	discovery         oauth.DiscoveryDocument
	rawDiscovery      *string
	rawToken          *rawResponse
	discoveryFailures failure
	tokenFailures     failure
	discoveryRequests int
	tokenRequests     int
	issued            int
	refreshToken      string
	lastTokenForm     url.Values
}

type rawResponse struct {
	status int
	body   string
}

// NewProvider starts a mock provider. Callers must Close it.
func NewProvider(config ProviderConfig) *Provider {
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}

	p := &Provider{
		config:       config,
		refreshToken: config.RefreshToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(oauth.WellKnownOpenIDConfigurationPath, p.handleDiscovery)
	mux.HandleFunc("/connect/token", p.handleToken)
	p.server = httptest.NewServer(mux)

	issuer := config.Issuer
	if issuer == "" {
		issuer = p.server.URL
	}
	p.discovery = oauth.DiscoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             p.server.URL + "/connect/authorize",
		TokenEndpoint:                     p.server.URL + "/connect/token",
		EndSessionEndpoint:                p.server.URL + "/connect/endsession",
		CheckSessionIframe:                p.server.URL + "/connect/checksession",
		GrantTypesSupported:               []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken, oauth.GrantTypeClientCredentials},
		TokenEndpointAuthMethodsSupported: []string{oauth.AuthMethodClientSecretBasic, oauth.AuthMethodClientSecretPost},
		CodeChallengeMethodsSupported:     []string{oauth.PKCEMethodS256},
	}

	return p
}

// URL returns the provider address (no trailing slash).
func (p *Provider) URL() string {
	return p.server.URL
}

// Client returns an http.Client that talks to the provider.
func (p *Provider) Client() *http.Client {
	return p.server.Client()
}

// Close shuts the server down.
func (p *Provider) Close() {
	p.server.Close()
}

// UpdateDiscovery mutates the served discovery document.
func (p *Provider) UpdateDiscovery(fn func(doc *oauth.DiscoveryDocument)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.discovery)
}

// SetRawDiscovery serves body verbatim from the discovery endpoint.
func (p *Provider) SetRawDiscovery(body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rawDiscovery = &body
}

// SetRawTokenResponse makes the token endpoint answer with status and body
// instead of issuing a token.
func (p *Provider) SetRawTokenResponse(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rawToken = &rawResponse{status: status, body: body}
}

// FailDiscovery makes the next n discovery requests answer with status.
func (p *Provider) FailDiscovery(n, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discoveryFailures = failure{remaining: n, status: status}
}

// FailToken makes the next n token requests answer with status.
func (p *Provider) FailToken(n, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenFailures = failure{remaining: n, status: status}
}

// DiscoveryRequests returns how many discovery requests were received.
func (p *Provider) DiscoveryRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveryRequests
}

// TokenRequests returns how many token requests were received.
func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// LastTokenForm returns the form of the most recent token request.
func (p *Provider) LastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm
}

// CurrentRefreshToken returns the refresh token the provider will accept next.
func (p *Provider) CurrentRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshToken
}

func (f *failure) take() (int, bool) {
	if f.remaining <= 0 {
		return 0, false
	}
	f.remaining--
	return f.status, true
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p.mu.Lock()
	p.discoveryRequests++
	status, failed := p.discoveryFailures.take()
	raw := p.rawDiscovery
	doc := p.discovery
	p.mu.Unlock()

	if failed {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if raw != nil {
		fmt.Fprint(w, *raw)
		return
	}
	_ = json.NewEncoder(w).Encode(doc)
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokenRequests++
	p.lastTokenForm = r.PostForm

	if status, failed := p.tokenFailures.take(); failed {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if p.rawToken != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.rawToken.status)
		fmt.Fprint(w, p.rawToken.body)
		return
	}

	if p.config.ClientID != "" && r.PostForm.Get("client_id") != p.config.ClientID {
		tokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client_id")
		return
	}

	grantType := r.PostForm.Get("grant_type")
	switch grantType {
	case oauth.GrantTypeRefreshToken:
		p.handleRefreshToken(w, r.PostForm)
	case oauth.GrantTypeClientCredentials:
		p.handleClientCredentials(w, r.PostForm)
	default:
		tokenError(w, http.StatusBadRequest, "unsupported_grant_type", fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

// handleRefreshToken expects p.mu to be held.
func (p *Provider) handleRefreshToken(w http.ResponseWriter, form url.Values) {
	presented := form.Get("refresh_token")
	if presented == "" || (p.refreshToken != "" && presented != p.refreshToken) {
		tokenError(w, http.StatusBadRequest, "invalid_grant", "refresh token not found")
		return
	}

	resp := p.issue(form.Get("scope"))
	if p.config.RotateRefreshToken {
		p.refreshToken = fmt.Sprintf("rt-%d", p.issued)
		resp.RefreshToken = p.refreshToken
	}
	writeToken(w, resp)
}

// handleClientCredentials expects p.mu to be held.
func (p *Provider) handleClientCredentials(w http.ResponseWriter, form url.Values) {
	if form.Get("client_secret") != p.config.ClientSecret {
		tokenError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}
	writeToken(w, p.issue(form.Get("scope")))
}

func (p *Provider) issue(scope string) oauth.TokenResponse {
	p.issued++
	return oauth.TokenResponse{
		AccessToken: fmt.Sprintf("at-%d", p.issued),
		TokenType:   "Bearer",
		ExpiresIn:   int64(p.config.TokenLifetime.Seconds()),
		Scope:       scope,
	}
}

func writeToken(w http.ResponseWriter, resp oauth.TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

func tokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
