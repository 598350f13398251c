package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is required")
	assert.True(t, errs.HasErrors())
	assert.Equal(t, "field 'a': is required", errs.Error())

	errs.Add("", "something else", 42)
	assert.Equal(t, "validation failed: field 'a': is required; something else", errs.Error())
	assert.Equal(t, 42, errs[1].Value)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name: "non-positive durations",
			mutate: func(c *Config) {
				c.HTTP.Timeout = 0
				c.HTTP.BaseDelay = -1
				c.Discovery.CacheTTL = 0
			},
			wantFields: []string{"http.timeout", "http.baseDelay", "discovery.cacheTTL"},
		},
		{
			name: "valid clients and tenants",
			mutate: func(c *Config) {
				c.Clients = map[string]oauth.ClientConfig{
					"svc": {ClientID: "svc", Authority: "https://login.example.com"},
				}
				c.Tenants = map[string]oauth.ClientConfig{
					"a.example.com": {ClientID: "a", Authority: "http://localhost:8080"},
				}
			},
		},
		{
			name: "incomplete entries are reported in name order",
			mutate: func(c *Config) {
				c.Clients = map[string]oauth.ClientConfig{
					"zeta":  {Authority: "https://login.example.com"},
					"alpha": {ClientID: "alpha"},
				}
				c.Tenants = map[string]oauth.ClientConfig{
					"b.example.com": {ClientID: "b", Authority: "ftp://login.example.com"},
				}
			},
			wantFields: []string{"clients.alpha.authority", "clients.zeta.clientId", "tenants.b.example.com.authority"},
		},
		{
			name: "kubernetes without namespace",
			mutate: func(c *Config) {
				c.Kubernetes.Enabled = true
				c.Kubernetes.Namespace = " "
			},
			wantFields: []string{"kubernetes.namespace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestDiscoveryOptions(t *testing.T) {
	cfg := Default()
	cfg.HTTP.MaxAttempts = 7
	cfg.Discovery.ValidateIssuerName = false

	opts := cfg.DiscoveryOptions()
	assert.Equal(t, cfg.Discovery.CacheTTL, opts.CacheTTL)
	assert.True(t, opts.ValidateGrantTypes)
	assert.False(t, opts.ValidateIssuerName)
	assert.Equal(t, 7, opts.MaxAttempts)
	assert.Equal(t, cfg.HTTP.BaseDelay, opts.BaseDelay)
}
