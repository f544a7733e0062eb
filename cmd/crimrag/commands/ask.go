package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askPartitions []string
	askK          int
	askNoMMR      bool
	askRerank     bool
	askSession    string
	askSources    bool
)

type askRequest struct {
	Query      string   `json:"query"`
	SessionID  string   `json:"session_id,omitempty"`
	Partitions []string `json:"partitions,omitempty"`
	K          int      `json:"k,omitempty"`
	UseMMR     bool     `json:"use_mmr,omitempty"`
	Rerank     bool     `json:"rerank,omitempty"`
}

type askSource struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Partition   string  `json:"partition"`
	Reliability string  `json:"reliability,omitempty"`
	Distance    float64 `json:"distance"`
}

type askResponse struct {
	Answer           string      `json:"answer"`
	Grounded         bool        `json:"grounded"`
	Sources          []askSource `json:"sources"`
	RetrievalTimeMS  int64       `json:"retrieval_time_ms"`
	GenerationTimeMS int64       `json:"generation_time_ms"`
}

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the corpus",
		Long: `Ask retrieves relevant passages and generates a grounded answer.

Examples:
  crimrag ask "Que establece la teoria de las ventanas rotas?"
  crimrag ask --partitions forensic_cases --k 5 "blood spatter analysis methods"
  crimrag ask --session "$SESSION" "y en que casos se aplico?"`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringSliceVar(&askPartitions, "partitions", nil, "partitions to search (default: server decides)")
	cmd.Flags().IntVar(&askK, "k", 0, "number of passages to retrieve (default: server default)")
	cmd.Flags().BoolVar(&askNoMMR, "no-mmr", false, "disable diversity re-selection")
	cmd.Flags().BoolVar(&askRerank, "rerank", false, "request cross-encoder re-scoring")
	cmd.Flags().StringVar(&askSession, "session", "", "session id for conversational follow-ups")
	cmd.Flags().BoolVar(&askSources, "sources", true, "print source passages after the answer")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := askRequest{
		Query:      args[0],
		SessionID:  askSession,
		Partitions: askPartitions,
		K:          askK,
		UseMMR:     !askNoMMR,
		Rerank:     askRerank,
	}

	var resp askResponse
	if err := newClient().post(cmd.Context(), "/v1/query", req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.TrimSpace(resp.Answer))

	if !resp.Grounded {
		fmt.Fprintln(out, "\n(answer is not grounded in retrieved passages)")
	}

	if askSources && len(resp.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, src := range resp.Sources {
			tier := src.Reliability
			if tier == "" {
				tier = "?"
			}
			fmt.Fprintf(out, "  [%d] %s (%s, tier=%s, dist=%.3f)\n      %s\n",
				i+1, src.ID, src.Partition, tier, src.Distance, truncate(src.Text, 160))
		}
	}

	fmt.Fprintf(out, "\nretrieval %dms, generation %dms\n", resp.RetrievalTimeMS, resp.GenerationTimeMS)
	return nil
}

// truncate shortens s to maxLen runes, appending "..." when cut.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
