// Package oauth holds the protocol-level building blocks shared by the
// resolvers: OIDC discovery and token response types, PKCE hashing, secure
// random codes and session ids, and OIDC Session Management session_state
// computation.
//
// Everything here is pure or depends only on crypto/rand; caching, retries
// and HTTP live in the internal packages.
package oauth
