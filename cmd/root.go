package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/tokenresolver/internal/config"
	"github.com/giantswarm/tokenresolver/internal/resolver"
	"github.com/giantswarm/tokenresolver/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNoToken indicates no token could be obtained for an expected reason.
	ExitCodeNoToken = 2
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command for the tokenresolver application.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenresolver",
		Short: "Resolve and inspect OAuth 2.0 / OIDC access tokens",
		Long: `tokenresolver obtains client-credentials access tokens for configured
clients, validates provider discovery documents and computes the PKCE and
session state values an OIDC client exchanges with its provider.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logging.InitForCLI(level, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/tokenresolver/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newDiscoveryCmd())
	cmd.AddCommand(newPKCECmd())
	cmd.AddCommand(newSessionStateCmd())
	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tokenresolver version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, resolver.ErrNoToken) {
		return ExitCodeNoToken
	}
	return ExitCodeError
}

// loadConfig reads the file named by --config, or the default location.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}
