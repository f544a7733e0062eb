package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out strings.Builder
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"ask", "ingest", "partitions", "documents", "session", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestAskPrintsAnswerAndSources(t *testing.T) {
	var got askRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(askResponse{
			Answer:   "La teoria fue formulada por Wilson y Kelling.",
			Grounded: true,
			Sources: []askSource{
				{ID: "c1", Text: "Broken windows theory", Partition: "criminology_theory", Reliability: "alta", Distance: 0.12},
			},
			RetrievalTimeMS:  40,
			GenerationTimeMS: 900,
		})
	})

	out, err := execute(t, srv.URL, "ask", "--k", "3", "--partitions", "criminology_theory", "quien formulo la teoria?")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.Query != "quien formulo la teoria?" {
		t.Errorf("query = %q", got.Query)
	}
	if got.K != 3 {
		t.Errorf("k = %d, want 3", got.K)
	}
	if !got.UseMMR {
		t.Error("use_mmr should default to true")
	}
	if len(got.Partitions) != 1 || got.Partitions[0] != "criminology_theory" {
		t.Errorf("partitions = %v", got.Partitions)
	}

	if !strings.Contains(out, "Wilson y Kelling") {
		t.Errorf("answer missing from output:\n%s", out)
	}
	if !strings.Contains(out, "tier=alta") {
		t.Errorf("source tier missing from output:\n%s", out)
	}
}

func TestAskServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "query is required"})
	})

	_, err := execute(t, srv.URL, "ask", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "query is required") {
		t.Errorf("error should carry server message, got %q", err.Error())
	}
}

func TestIngestDuplicate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ingestResp{
			DocumentID: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			Status:     "completed",
			Duplicate:  true,
		})
	})

	root := NewRootCmd()
	var out strings.Builder
	root.SetOut(&out)
	root.SetIn(strings.NewReader("some corpus text"))
	root.SetArgs([]string{"--server", srv.URL, "ingest", "--partition", "legislation"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.Contains(out.String(), "duplicate") {
		t.Errorf("expected duplicate notice, got:\n%s", out.String())
	}
}

func TestIngestRequiresPartition(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetIn(strings.NewReader("text"))
	root.SetArgs([]string{"ingest"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing --partition error")
	}
}

func TestIngestSendsReliabilityMetadata(t *testing.T) {
	var got ingestReq
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(ingestResp{DocumentID: "x", JobID: "y", Status: "pending"})
	})

	root := NewRootCmd()
	root.SetOut(&strings.Builder{})
	root.SetIn(strings.NewReader("caso 412: informe pericial"))
	root.SetArgs([]string{"--server", srv.URL, "ingest", "--partition", "forensic_cases", "--reliability", "alta"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.Partition != "forensic_cases" {
		t.Errorf("partition = %q", got.Partition)
	}
	if got.Metadata["source_reliability"] != "alta" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestPartitionsTable(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/partitions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"partitions": []partitionInfo{
				{Name: "forensic_cases", Description: "Case files", Priority: 1},
				{Name: "criminology_theory", Description: "Theory texts", Priority: 2},
			},
		})
	})

	out, err := execute(t, srv.URL, "partitions")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "forensic_cases") || !strings.Contains(out, "criminology_theory") {
		t.Errorf("partition names missing:\n%s", out)
	}
}

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		json.NewEncoder(w).Encode(map[string]any{"partitions": []partitionInfo{}})
	})

	if _, err := execute(t, srv.URL, "--api-key", "secret-key", "partitions"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("X-Api-Key = %q, want secret-key", gotKey)
	}
}

func TestDocumentsDelete(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	out, err := execute(t, srv.URL, "documents", "delete", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "deleted") {
		t.Errorf("output = %q", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"multi\nline", 20, "multi line"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestWaitForJobFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobResp{ID: "j1", Status: "failed", ErrorMessage: "no chunks produced"})
	})

	client := &apiClient{baseURL: srv.URL, timeout: 5 * time.Second}
	err := waitForJob(t.Context(), client, &strings.Builder{}, "j1")
	if err == nil || !strings.Contains(err.Error(), "no chunks produced") {
		t.Errorf("err = %v", err)
	}
}
