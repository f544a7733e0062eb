package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Create a conversation session",
		Long: `Session creates a new conversation session on the server and prints
its id and token. Pass the id to "ask --session" so follow-up
questions keep their context.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				SessionID string `json:"session_id"`
				Token     string `json:"token"`
			}
			if err := newClient().post(cmd.Context(), "/v1/sessions", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session_id: %s\ntoken: %s\n", resp.SessionID, resp.Token)
			return nil
		},
	}
}
