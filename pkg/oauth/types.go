package oauth

import (
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// WellKnownOpenIDConfigurationPath is the discovery path appended to a provider address.
const WellKnownOpenIDConfigurationPath = "/.well-known/openid-configuration"

// Token endpoint client authentication methods.
const (
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodNone              = "none"
)

// Grant types used by the resolvers.
const (
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeAuthorizationCode = "authorization_code"
)

// DiscoveryDocument is the OpenID Provider metadata published at
// /.well-known/openid-configuration.
//
// The discovery cache hands out clones, so callers may modify what they get
// without touching the cached entry.
type DiscoveryDocument struct {
	// Issuer is the provider's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// EndSessionEndpoint is the RP-initiated logout endpoint (optional).
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// CheckSessionIframe is the OP iframe used for front-channel session
	// change detection (optional).
	CheckSessionIframe string `json:"check_session_iframe,omitempty"`

	// UserinfoEndpoint is the URL of the userinfo endpoint (optional).
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set (optional).
	JwksURI string `json:"jwks_uri,omitempty"`

	// GrantTypesSupported lists the grant types supported.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods.
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`

	// ExpiresAt is when the cached copy of this document goes stale.
	// It is set by the cache and never read from the wire.
	ExpiresAt time.Time `json:"-"`
}

// Clone returns a deep copy of d.
func (d *DiscoveryDocument) Clone() *DiscoveryDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.GrantTypesSupported = slices.Clone(d.GrantTypesSupported)
	c.TokenEndpointAuthMethodsSupported = slices.Clone(d.TokenEndpointAuthMethodsSupported)
	c.CodeChallengeMethodsSupported = slices.Clone(d.CodeChallengeMethodsSupported)
	return &c
}

// SupportsAuthMethod reports whether the provider advertises the given
// token endpoint authentication method.
func (d *DiscoveryDocument) SupportsAuthMethod(method string) bool {
	return slices.Contains(d.TokenEndpointAuthMethodsSupported, method)
}

// SupportsGrantType reports whether the provider advertises the given grant type.
func (d *DiscoveryDocument) SupportsGrantType(grantType string) bool {
	return slices.Contains(d.GrantTypesSupported, grantType)
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (d *DiscoveryDocument) SupportsPKCE() bool {
	if len(d.CodeChallengeMethodsSupported) == 0 {
		return true
	}
	return slices.Contains(d.CodeChallengeMethodsSupported, PKCEMethodS256)
}

// TokenResponse is the JSON body returned by a token endpoint.
type TokenResponse struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC ID token (optional).
	IDToken string `json:"id_token,omitempty"`

	// SessionState is the OP session state for check-session iframes (optional).
	SessionState string `json:"session_state,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`
}

// maxLifetimeSeconds is the largest expires_in that fits in a time.Duration.
const maxLifetimeSeconds = math.MaxInt64 / int64(time.Second)

// Lifetime returns ExpiresIn as a duration. Values too large for a
// time.Duration saturate instead of wrapping negative.
func (r *TokenResponse) Lifetime() time.Duration {
	if r.ExpiresIn > maxLifetimeSeconds {
		return time.Duration(maxLifetimeSeconds) * time.Second
	}
	return time.Duration(r.ExpiresIn) * time.Second
}

// CachedAccessToken is an access token together with its absolute expiry.
type CachedAccessToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at now.
// The expiry must be strictly after now.
func (t *CachedAccessToken) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.After(now)
}

// ToOAuth2Token converts the token for use with golang.org/x/oauth2.
func (t *CachedAccessToken) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
}

// ClientConfig is the registration of an OAuth client at a provider.
type ClientConfig struct {
	// ClientID is the OAuth client identifier.
	ClientID string `yaml:"clientId" json:"client_id"`

	// ClientSecret is the client secret, sent with client_secret_post.
	ClientSecret string `yaml:"clientSecret,omitempty" json:"client_secret,omitempty"`

	// Authority is the provider address; discovery is fetched relative to it.
	Authority string `yaml:"authority" json:"authority"`

	// Scope is the space-separated scope requested at the token endpoint.
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`

	// Scheme names the authentication scheme a session-bound client signs in with.
	Scheme string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
}

// Scopes returns the scope as a slice of individual scopes.
func (c ClientConfig) Scopes() []string {
	if c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}
