package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestPartition   string
	ingestTitle       string
	ingestSource      string
	ingestReliability string
	ingestWait        bool
)

type ingestReq struct {
	Content   string            `json:"content"`
	Source    string            `json:"source,omitempty"`
	Title     string            `json:"title,omitempty"`
	Partition string            `json:"partition"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ingestResp struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id,omitempty"`
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

type jobResp struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ChunksTotal  int    `json:"chunks_total"`
	ChunksStored int    `json:"chunks_stored"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest documents into a corpus partition",
		Long: `Ingest reads text files (or stdin when no files are given) and submits
them for segmentation and indexing.

Examples:
  crimrag ingest --partition criminology_theory lombroso.txt
  cat case_412.txt | crimrag ingest --partition forensic_cases --title "Case 412"
  crimrag ingest --partition legislation --reliability alta codigo_penal.txt --wait`,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestPartition, "partition", "", "target partition (required)")
	cmd.Flags().StringVar(&ingestTitle, "title", "", "document title (default: file name)")
	cmd.Flags().StringVar(&ingestSource, "source", "", "source identifier (default: file path)")
	cmd.Flags().StringVar(&ingestReliability, "reliability", "", "source reliability tier (alta, media, baja)")
	cmd.Flags().BoolVar(&ingestWait, "wait", false, "poll the ingest job until it finishes")
	_ = cmd.MarkFlagRequired("partition")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	client := newClient()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		return submitDocument(cmd.Context(), client, out, string(data), ingestSource, ingestTitle)
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		source := ingestSource
		if source == "" {
			source = path
		}
		title := ingestTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if err := submitDocument(cmd.Context(), client, out, string(data), source, title); err != nil {
			return err
		}
	}
	return nil
}

func submitDocument(ctx context.Context, client *apiClient, out io.Writer, content, source, title string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no content to ingest")
	}

	req := ingestReq{
		Content:   content,
		Source:    source,
		Title:     title,
		Partition: ingestPartition,
	}
	if ingestReliability != "" {
		req.Metadata = map[string]string{"source_reliability": ingestReliability}
	}

	var resp ingestResp
	if err := client.post(ctx, "/v1/documents", req, &resp); err != nil {
		return err
	}

	if resp.Duplicate {
		fmt.Fprintf(out, "duplicate: document %s already ingested\n", resp.DocumentID)
		return nil
	}
	fmt.Fprintf(out, "accepted: document %s job %s\n", resp.DocumentID, resp.JobID)

	if !ingestWait || resp.JobID == "" {
		return nil
	}
	return waitForJob(ctx, client, out, resp.JobID)
}

func waitForJob(ctx context.Context, client *apiClient, out io.Writer, jobID string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		var job jobResp
		if err := client.get(ctx, "/v1/jobs/"+jobID, &job); err != nil {
			return err
		}
		switch job.Status {
		case "completed":
			fmt.Fprintf(out, "completed: %d chunks stored\n", job.ChunksStored)
			return nil
		case "failed":
			return fmt.Errorf("ingest failed: %s", job.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
