// Package config loads tokenresolver configuration.
//
// Configuration is read from a single YAML file, by default
// ~/.config/tokenresolver/config.yaml. A missing file yields the built-in
// defaults. Scalar settings can then be overridden from the environment
// with TOKENRESOLVER_-prefixed variables:
//
//	TOKENRESOLVER_HTTP_TIMEOUT
//	TOKENRESOLVER_HTTP_MAX_ATTEMPTS
//	TOKENRESOLVER_HTTP_BASE_DELAY
//	TOKENRESOLVER_DISCOVERY_CACHE_TTL
//	TOKENRESOLVER_DISCOVERY_VALIDATE_GRANT_TYPES
//	TOKENRESOLVER_DISCOVERY_VALIDATE_ISSUER_NAME
//	TOKENRESOLVER_KUBERNETES_ENABLED
//	TOKENRESOLVER_KUBERNETES_NAMESPACE
//	TOKENRESOLVER_KUBERNETES_SECRET_PREFIX
//
// Example file:
//
//	http:
//	  timeout: 30s
//	  maxAttempts: 3
//	  baseDelay: 200ms
//	discovery:
//	  cacheTTL: 24h
//	clients:
//	  billing:
//	    clientId: billing-api
//	    clientSecret: s3cret
//	    authority: https://login.example.com
//	    scope: billing.read
//	tenants:
//	  a.example.com:
//	    clientId: tenant-a
//	    authority: https://login.example.com
//	    scheme: oidc-a
//	kubernetes:
//	  enabled: true
//	  namespace: platform
//	  secretPrefix: oauth-client-
//
// Secrets in the file are never logged.
package config
