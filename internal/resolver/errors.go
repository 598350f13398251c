package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownHost is returned when a multi-tenant deployment has no client
	// registered for the request host. It indicates a deployment defect.
	ErrUnknownHost = errors.New("no client configured for host")

	// ErrInvalidClientConfig is matched by every ConfigError.
	ErrInvalidClientConfig = errors.New("invalid client configuration")

	// ErrNoToken is returned by adapters that need a token where the
	// resolver produced none.
	ErrNoToken = errors.New("no access token available")
)

// ConfigError reports a required client configuration field that is empty.
type ConfigError struct {
	Client string
	Field  string
}

func (e *ConfigError) Error() string {
	if e.Client == "" {
		return fmt.Sprintf("invalid client configuration: %s is required", e.Field)
	}
	return fmt.Sprintf("invalid client configuration for %s: %s is required", e.Client, e.Field)
}

// Is makes a ConfigError match ErrInvalidClientConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidClientConfig
}
