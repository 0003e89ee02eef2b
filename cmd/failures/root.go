package main

import (
	"os"

	"github.com/nadmax/failscope/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	apiURL   string
	apiUser  string
	apiKey   string
	retries  int
	logLevel string
}

var rootOpts rootOptions

var rootCmd = &cobra.Command{
	Use:           "failures",
	Short:         "Browse recent task failures of a project.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_, err := logging.Configure(rootOpts.logLevel, logging.FormatText, "cli", cmd.ErrOrStderr())
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.apiURL, "api", os.Getenv("QUERY_API_URL"), "base URL of the task query service")
	flags.StringVar(&rootOpts.apiUser, "api-user", os.Getenv("QUERY_API_USER"), "API user sent with each request")
	flags.StringVar(&rootOpts.apiKey, "api-key", os.Getenv("QUERY_API_KEY"), "API key sent with each request")
	flags.IntVar(&rootOpts.retries, "retries", 0, "retries for failed requests")
	flags.StringVar(&rootOpts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(newListCmd())
}
