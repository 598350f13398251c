// Package mock provides test doubles for tokenresolver components.
//
// Clock is a controllable time source satisfying clock.Clock, used to drive
// discovery TTL and access token expiry in tests.
//
// Provider is an in-process OpenID provider backed by httptest. It serves a
// discovery document and a token endpoint supporting the refresh_token and
// client_credentials grants, counts requests per endpoint, and can be told
// to fail a number of requests with a given status. Tests use it to observe
// how many network round trips a resolver or cache performs.
//
//	p := mock.NewProvider(mock.ProviderConfig{ClientID: "orders", ClientSecret: "s3cret"})
//	defer p.Close()
//
//	p.FailToken(2, http.StatusServiceUnavailable)
//	// ... exercise the resolver against p.URL()
//	if p.TokenRequests() != 3 { ... }
package mock
