// Package commands implements the crimrag CLI, a thin client for the
// crimragd HTTP API.
package commands

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	timeout   time.Duration
)

// NewRootCmd builds the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crimrag",
		Short: "Client for the crimrag retrieval service",
		Long: `crimrag talks to a running crimragd instance.

The server address and API key can also be set through the
CRIMRAG_SERVER and CRIMRAG_API_KEY environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("server") {
				if v := os.Getenv("CRIMRAG_SERVER"); v != "" {
					serverURL = v
				}
			}
			if !cmd.Flags().Changed("api-key") {
				if v := os.Getenv("CRIMRAG_API_KEY"); v != "" {
					apiKey = v
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "crimragd base URL")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key sent as X-Api-Key")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newPartitionsCmd())
	cmd.AddCommand(newDocumentsCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func newClient() *apiClient {
	return &apiClient{
		baseURL: serverURL,
		apiKey:  apiKey,
		timeout: timeout,
	}
}
