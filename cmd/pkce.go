package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

func newPKCECmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pkce [verifier]",
		Short: "Compute a PKCE S256 code challenge",
		Long: `Compute the S256 code challenge for a code verifier. Without an
argument a fresh verifier is generated and printed alongside its challenge.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				fmt.Fprintln(out, oauth.HashCodeVerifierS256(args[0]))
				return nil
			}

			challenge, err := oauth.GeneratePKCE()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "code_verifier:         %s\n", challenge.CodeVerifier)
			fmt.Fprintf(out, "code_challenge:        %s\n", challenge.CodeChallenge)
			fmt.Fprintf(out, "code_challenge_method: %s\n", challenge.CodeChallengeMethod)
			return nil
		},
	}
}
