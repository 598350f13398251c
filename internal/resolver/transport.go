package resolver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// Transport authenticates outbound requests with a token from a
// CachedResolver. When the downstream API answers 401 the cached token is
// evicted and the request is sent once more with a freshly resolved token.
// A second 401 is returned to the caller unchanged.
type Transport struct {
	Resolver   *CachedResolver
	ClientName string

	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// HTTPClient returns a client whose requests are authenticated as clientName.
func (r *CachedResolver) HTTPClient(clientName string, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &Transport{Resolver: r, ClientName: clientName, Base: base},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.token(req)
	if err != nil {
		closeRequestBody(req)
		return nil, err
	}

	resp, err := t.base().RoundTrip(authorize(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	logger := t.Resolver.logger.With("client", t.ClientName, "uri", req.URL.Redacted())

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		logger.Warn("Downstream rejected the access token and the request body cannot be replayed")
		return resp, nil
	}

	if challenge := oauth.ParseWWWAuthenticateFromResponse(resp); challenge != nil {
		logger = logger.With("challenge_error", challenge.Error)
	}
	logger.Info("Downstream rejected the access token, re-authenticating")

	t.Resolver.ClearClientToken(t.ClientName)

	retryToken, err := t.token(req)
	if err != nil {
		logger.Error("Failed to resolve a new access token", "error", err)
		return resp, nil
	}

	retry := authorize(req, retryToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	drain(resp)
	return t.base().RoundTrip(retry)
}

func (t *Transport) token(req *http.Request) (string, error) {
	token, err := t.Resolver.GetClientToken(req.Context(), t.ClientName, nil)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w for client %s", ErrNoToken, t.ClientName)
	}
	return token, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// authorize returns a copy of req carrying the bearer token.
func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	resp.Body.Close()
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

