// Package logging provides the process-wide structured logger for
// tokenresolver, built on Go's standard slog package.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Error("Credentials", err, "Failed to read secret %s", name)
//
// Library components (discovery cache, retry caller, resolvers) take a
// *slog.Logger through a WithLogger option and fall back to
// logging.Logger(subsystem), which tags every record with a "subsystem"
// attribute:
//
//	logger := logging.Logger("Discovery")
//	logger.Error("discovery document has no token_endpoint_auth_methods_supported",
//	    "provider", addr)
//
// # Subsystems
//
//   - Discovery: provider metadata fetch and validation
//   - HTTPRetry: retried outbound calls
//   - Resolver: access token resolution and refresh
//   - Credentials: client registration lookup
//   - Config: configuration loading
//
// # Controller-Runtime Integration
//
// InitForCLI also installs the same handler as controller-runtime's logr
// sink, so the Kubernetes Secret credentials store logs through slog.
//
// # Security
//
// Access tokens, refresh tokens and client secrets are never logged. Session
// ids and similar identifiers go through TruncateID first.
package logging
