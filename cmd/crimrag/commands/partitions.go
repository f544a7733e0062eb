package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type partitionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

func newPartitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partitions",
		Short: "List corpus partitions in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Partitions []partitionInfo `json:"partitions"`
			}
			if err := newClient().get(cmd.Context(), "/v1/partitions", &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tNAME\tDESCRIPTION")
			for _, p := range resp.Partitions {
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.Priority, p.Name, p.Description)
			}
			return w.Flush()
		},
	}
}
