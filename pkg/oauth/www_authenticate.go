package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// authParamRegex matches key="value" pairs in a WWW-Authenticate header.
var authParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// AuthChallenge represents parsed information from a WWW-Authenticate header.
type AuthChallenge struct {
	// Scheme is the authentication scheme (typically "Bearer").
	Scheme string

	// Realm is the protection realm.
	Realm string

	// Scope is the space-separated list of required OAuth scopes.
	Scope string

	// Error is the error code from the header (e.g. "invalid_token").
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsInvalidToken reports whether the challenge says the presented token was
// rejected (expired, revoked or malformed).
func (c *AuthChallenge) IsInvalidToken() bool {
	return c != nil && c.Error == "invalid_token"
}

// ParseWWWAuthenticate parses a WWW-Authenticate header value.
//
// Example headers:
//
//	Bearer realm="api"
//	Bearer error="invalid_token", error_description="The token has expired"
func ParseWWWAuthenticate(header string) (*AuthChallenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	parts := strings.SplitN(header, " ", 2)
	challenge := &AuthChallenge{
		Scheme: parts[0],
	}

	if len(parts) > 1 {
		for _, match := range authParamRegex.FindAllStringSubmatch(parts[1], -1) {
			switch strings.ToLower(match[1]) {
			case "realm":
				challenge.Realm = match[2]
			case "scope":
				challenge.Scope = match[2]
			case "error":
				challenge.Error = match[2]
			case "error_description":
				challenge.ErrorDescription = match[2]
			}
		}
	}

	return challenge, nil
}

// ParseWWWAuthenticateFromResponse extracts the challenge from a 401 response.
// Returns nil if the response is not a 401 or carries no parsable header.
func ParseWWWAuthenticateFromResponse(resp *http.Response) *AuthChallenge {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return nil
	}

	challenge, err := ParseWWWAuthenticate(resp.Header.Get("WWW-Authenticate"))
	if err != nil {
		return nil
	}
	return challenge
}
