package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "no validation errors"
	case 1:
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors reports whether any error was added.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends an error for field.
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// Validate checks the configuration and returns ValidationErrors when
// anything is wrong.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.HTTP.Timeout <= 0 {
		errs.Add("http.timeout", "must be positive", c.HTTP.Timeout)
	}
	if c.HTTP.MaxAttempts < 1 {
		errs.Add("http.maxAttempts", "must be at least 1", c.HTTP.MaxAttempts)
	}
	if c.HTTP.BaseDelay < 0 {
		errs.Add("http.baseDelay", "must not be negative", c.HTTP.BaseDelay)
	}
	if c.Discovery.CacheTTL <= 0 {
		errs.Add("discovery.cacheTTL", "must be positive", c.Discovery.CacheTTL)
	}

	validateClients(&errs, "clients", c.Clients)
	validateClients(&errs, "tenants", c.Tenants)

	if c.Kubernetes.Enabled && strings.TrimSpace(c.Kubernetes.Namespace) == "" {
		errs.Add("kubernetes.namespace", "is required when kubernetes is enabled")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateClients(errs *ValidationErrors, section string, clients map[string]oauth.ClientConfig) {
	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		client := clients[name]
		prefix := fmt.Sprintf("%s.%s", section, name)

		if strings.TrimSpace(client.ClientID) == "" {
			errs.Add(prefix+".clientId", "is required")
		}
		if strings.TrimSpace(client.Authority) == "" {
			errs.Add(prefix+".authority", "is required")
			continue
		}
		if !isAbsoluteURL(client.Authority) {
			errs.Add(prefix+".authority", "must be an absolute http(s) URL", client.Authority)
		}
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
