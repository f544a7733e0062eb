package commands

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	docsLimit     int
	docsOffset    int
	docsPartition string
	docsStatus    string
)

type documentInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Partition   string    `json:"partition"`
	Reliability string    `json:"reliability,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Inspect and manage ingested documents",
	}
	cmd.AddCommand(newDocumentsListCmd())
	cmd.AddCommand(newDocumentsDeleteCmd())
	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE:  runDocumentsList,
	}

	cmd.Flags().IntVar(&docsLimit, "limit", 50, "maximum documents to return")
	cmd.Flags().IntVar(&docsOffset, "offset", 0, "pagination offset")
	cmd.Flags().StringVar(&docsPartition, "partition", "", "filter by partition")
	cmd.Flags().StringVar(&docsStatus, "status", "", "filter by status")

	return cmd
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(docsLimit))
	if docsOffset > 0 {
		q.Set("offset", strconv.Itoa(docsOffset))
	}
	if docsPartition != "" {
		q.Set("partition", docsPartition)
	}
	if docsStatus != "" {
		q.Set("status", docsStatus)
	}

	var resp struct {
		Documents []documentInfo `json:"documents"`
		Total     int            `json:"total"`
	}
	if err := newClient().get(cmd.Context(), "/v1/documents?"+q.Encode(), &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPARTITION\tTIER\tCHUNKS\tSTATUS\tCREATED")
	for _, d := range resp.Documents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID, truncate(d.Title, 40), d.Partition, d.Reliability,
			d.ChunkCount, d.Status, d.CreatedAt.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d documents\n", len(resp.Documents), resp.Total)
	return nil
}

func newDocumentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a document and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().delete(cmd.Context(), "/v1/documents/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
