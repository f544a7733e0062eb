package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStoreAddAndHistory(t *testing.T) {
	s := NewStore(5, time.Hour)
	defer s.Close()

	s.AddExchange("sess1", "who was Lombroso?", "an Italian criminologist")
	s.AddExchange("sess1", "when did he work?", "late 19th century")

	history := s.History("sess1")
	if len(history) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(history))
	}
	if history[0].Question != "who was Lombroso?" {
		t.Errorf("first question = %q", history[0].Question)
	}
	if history[1].Answer != "late 19th century" {
		t.Errorf("second answer = %q", history[1].Answer)
	}
}

func TestStoreUnknownSession(t *testing.T) {
	s := NewStore(5, time.Hour)
	defer s.Close()

	if history := s.History("missing"); history != nil {
		t.Errorf("got %v for unknown session, want nil", history)
	}
}

func TestStoreCapsExchanges(t *testing.T) {
	s := NewStore(3, time.Hour)
	defer s.Close()

	for i := 0; i < 6; i++ {
		s.AddExchange("sess1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	history := s.History("sess1")
	if len(history) != 3 {
		t.Fatalf("got %d exchanges, want 3", len(history))
	}
	// Oldest turns are dropped, most recent kept.
	if history[0].Question != "q3" || history[2].Question != "q5" {
		t.Errorf("got window [%s..%s], want [q3..q5]", history[0].Question, history[2].Question)
	}
}

func TestStoreRecentHistory(t *testing.T) {
	s := NewStore(10, time.Hour)
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.AddExchange("sess1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	recent := s.RecentHistory("sess1", 2)
	if len(recent) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(recent))
	}
	if recent[0].Question != "q2" || recent[1].Question != "q3" {
		t.Errorf("got [%s %s], want [q2 q3]", recent[0].Question, recent[1].Question)
	}

	all := s.RecentHistory("sess1", 10)
	if len(all) != 4 {
		t.Errorf("got %d exchanges when n exceeds history, want 4", len(all))
	}
}

func TestStoreClearSession(t *testing.T) {
	s := NewStore(5, time.Hour)
	defer s.Close()

	s.AddExchange("sess1", "q", "a")
	s.ClearSession("sess1")

	if history := s.History("sess1"); history != nil {
		t.Errorf("got %v after clear, want nil", history)
	}
}

func TestStoreHistoryReturnsCopy(t *testing.T) {
	s := NewStore(5, time.Hour)
	defer s.Close()

	s.AddExchange("sess1", "q0", "a0")

	history := s.History("sess1")
	history[0].Question = "tampered"

	if got := s.History("sess1"); got[0].Question != "q0" {
		t.Errorf("stored history mutated through returned slice: %q", got[0].Question)
	}
}

func TestFormatForPrompt(t *testing.T) {
	exchanges := []Exchange{
		{Question: "who?", Answer: "Lombroso"},
		{Question: "when?", Answer: "1876"},
	}

	got := FormatForPrompt(exchanges)

	want := "User: who?\nAssistant: Lombroso\nUser: when?\nAssistant: 1876\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if FormatForPrompt(nil) != "" {
		t.Error("empty history should format to empty string")
	}
	if strings.Contains(FormatForPrompt([]Exchange{}), "User") {
		t.Error("empty slice should format to empty string")
	}
}

func TestStoreSessionsAreIndependent(t *testing.T) {
	s := NewStore(5, time.Hour)
	defer s.Close()

	s.AddExchange("a", "qa", "aa")
	s.AddExchange("b", "qb", "ab")

	if got := s.History("a"); len(got) != 1 || got[0].Question != "qa" {
		t.Errorf("session a history = %v", got)
	}
	if got := s.History("b"); len(got) != 1 || got[0].Question != "qb" {
		t.Errorf("session b history = %v", got)
	}
}
