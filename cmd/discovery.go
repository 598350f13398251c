package cmd

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/tokenresolver/internal/discovery"
	"github.com/giantswarm/tokenresolver/internal/httpretry"
	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
	"github.com/giantswarm/tokenresolver/pkg/sanitize"
)

// maxStatusLen keeps error cells readable in the table.
const maxStatusLen = 80

var errInvalidProvider = errors.New("one or more providers failed discovery")

func newDiscoveryCmd() *cobra.Command {
	var (
		skipIssuerCheck    bool
		skipGrantTypeCheck bool
	)

	cmd := &cobra.Command{
		Use:   "discovery <authority>...",
		Short: "Fetch and validate provider discovery documents",
		Long: `Fetch the OpenID Connect discovery document of each authority and run
the same validation the token resolver applies before requesting a token.

Validation failures are logged and shown in the table; the command exits
non-zero if any authority could not be used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			opts := cfg.DiscoveryOptions()
			if skipIssuerCheck {
				opts.ValidateIssuerName = false
			}
			if skipGrantTypeCheck {
				opts.ValidateGrantTypes = false
			}

			httpClient := cleanhttp.DefaultPooledClient()
			httpClient.Timeout = cfg.HTTP.Timeout
			logger := logging.Logger("Discovery")
			cache := discovery.New(
				discovery.WithLogger(logger),
				discovery.WithCaller(httpretry.New(httpretry.WithHTTPClient(httpClient), httpretry.WithLogger(logger))),
			)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{
				text.FgHiCyan.Sprint("AUTHORITY"),
				text.FgHiCyan.Sprint("STATUS"),
				text.FgHiCyan.Sprint("TOKEN ENDPOINT"),
				text.FgHiCyan.Sprint("GRANT TYPES"),
				text.FgHiCyan.Sprint("AUTH METHODS"),
				text.FgHiCyan.Sprint("PKCE"),
			})

			failed := false
			for _, authority := range args {
				doc, err := cache.GetDiscovery(cmd.Context(), opts, authority)
				switch {
				case err != nil:
					failed = true
					t.AppendRow(table.Row{authority, text.FgRed.Sprintf("error: %s", sanitize.SingleLine(err.Error(), maxStatusLen)), "", "", "", ""})
				case doc == nil:
					failed = true
					t.AppendRow(table.Row{authority, text.FgYellow.Sprint("invalid"), "", "", "", ""})
				default:
					t.AppendRow(discoveryRow(authority, doc))
				}
			}
			t.Render()

			if failed {
				return errInvalidProvider
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipIssuerCheck, "skip-issuer-check", false, "do not require the issuer to equal the authority")
	cmd.Flags().BoolVar(&skipGrantTypeCheck, "skip-grant-types-check", false, "do not require grant_types_supported")
	return cmd
}

func discoveryRow(authority string, doc *oauth.DiscoveryDocument) table.Row {
	// An absent code_challenge_methods_supported says nothing either way.
	var pkce string
	switch {
	case len(doc.CodeChallengeMethodsSupported) == 0:
		pkce = text.FgHiBlack.Sprint("unknown")
	case doc.SupportsPKCE():
		pkce = text.FgGreen.Sprint("S256")
	default:
		pkce = text.FgYellow.Sprint("no")
	}

	status := text.FgGreen.Sprint("ok")
	if !doc.SupportsGrantType(oauth.GrantTypeClientCredentials) {
		status = text.FgYellow.Sprint("ok (no client_credentials)")
	}

	return table.Row{
		authority,
		status,
		doc.TokenEndpoint,
		strings.Join(doc.GrantTypesSupported, ", "),
		strings.Join(doc.TokenEndpointAuthMethodsSupported, ", "),
		pkce,
	}
}
