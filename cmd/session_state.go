package cmd

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

var errSessionStateMismatch = errors.New("session state does not match")

func newSessionStateCmd() *cobra.Command {
	var (
		clientID    string
		redirectURI string
		sessionID   string
		salt        string
		verify      string
	)

	cmd := &cobra.Command{
		Use:   "session-state",
		Short: "Compute or verify an OIDC session_state value",
		Long: `Compute the OIDC Session Management session_state for a client,
redirect URI and browser session id. Pass --salt to reproduce an earlier
value, or --verify to check an existing one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if verify != "" {
				if !oauth.VerifySessionState(verify, clientID, redirectURI, sessionID) {
					fmt.Fprintf(out, "Status: %s\n", text.FgRed.Sprint("mismatch"))
					return errSessionStateMismatch
				}
				fmt.Fprintf(out, "Status: %s\n", text.FgGreen.Sprint("valid"))
				return nil
			}

			state, err := oauth.GenerateSessionState(salt, clientID, redirectURI, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "client id")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI registered for the client")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "browser session id")
	cmd.Flags().StringVar(&salt, "salt", "", "salt to reuse; a random one is generated when empty")
	cmd.Flags().StringVar(&verify, "verify", "", "session_state value to verify instead of computing one")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("redirect-uri")
	_ = cmd.MarkFlagRequired("session-id")
	return cmd
}
