package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/tokenresolver/internal/config"
	"github.com/giantswarm/tokenresolver/internal/credentials"
	"github.com/giantswarm/tokenresolver/internal/resolver"
	"github.com/giantswarm/tokenresolver/pkg/logging"
)

// DefaultTokenTimeout bounds a single token resolution from the CLI.
const DefaultTokenTimeout = 60 * time.Second

// newKubernetesStore is replaced in tests.
var newKubernetesStore = func(cfg config.Config) (credentials.Store, error) {
	k8sClient, err := credentials.NewKubernetesClient(nil)
	if err != nil {
		return nil, err
	}
	return credentials.NewSecretStore(k8sClient, cfg.SecretStoreConfig()), nil
}

func newTokenCmd() *cobra.Command {
	var (
		show    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <client>",
		Short: "Obtain a client-credentials access token",
		Long: `Obtain an access token for a configured client using the client
credentials grant.

The client is looked up in the clients section of the configuration and,
when kubernetes is enabled, in a Secret named <secretPrefix><client>.
By default only the expiry is printed; pass --show to print the token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientName := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			r, err := newCachedResolver(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			token, err := r.GetClientToken(ctx, clientName, nil)
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("%w for client %s", resolver.ErrNoToken, clientName)
			}

			out := cmd.OutOrStdout()
			if show {
				fmt.Fprintln(out, token)
				return nil
			}

			cached, _ := r.Cache().Get(clientName)
			fmt.Fprintf(out, "Client:   %s\n", clientName)
			fmt.Fprintf(out, "Status:   %s\n", text.FgGreen.Sprint("Token obtained"))
			fmt.Fprintf(out, "Expires:  %s (in %s)\n",
				cached.ExpiresAt.Local().Format(time.RFC3339),
				time.Until(cached.ExpiresAt).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print the access token itself")
	cmd.Flags().DurationVar(&timeout, "timeout", DefaultTokenTimeout, "overall timeout for discovery and the token request")
	return cmd
}

// newCachedResolver builds a process-cached resolver from configuration.
func newCachedResolver(cfg config.Config) (*resolver.CachedResolver, error) {
	var store credentials.Store
	if cfg.Kubernetes.Enabled {
		s, err := newKubernetesStore(cfg)
		if err != nil {
			return nil, err
		}
		store = s
	}

	registry := credentials.NewRegistry(store)
	for name, client := range cfg.Clients {
		registry.Register(name, client)
	}
	logging.Debug("Resolver", "Registered %d static client(s), credentials store enabled: %t", len(cfg.Clients), store != nil)

	return resolver.NewCachedResolver(registry, resolver.NewTokenCache(nil), resolverOptions(cfg)...), nil
}

func resolverOptions(cfg config.Config) []resolver.Option {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.HTTP.Timeout

	return []resolver.Option{
		resolver.WithHTTPClient(httpClient),
		resolver.WithRetry(cfg.HTTP.MaxAttempts, cfg.HTTP.BaseDelay),
		resolver.WithDiscoveryOptions(cfg.DiscoveryOptions()),
	}
}
