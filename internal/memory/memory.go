// Package memory provides conversation history storage for multi-turn
// question answering sessions.
package memory

import (
	"strings"
	"sync"
	"time"
)

// Exchange is one question-answer turn in a session.
type Exchange struct {
	Question string
	Answer   string
	At       time.Time
}

// session holds the exchange history for one session ID.
type session struct {
	exchanges []Exchange
	createdAt time.Time
	updatedAt time.Time
}

// Store provides in-memory session storage with a per-session exchange cap
// and idle expiry. Sessions are not persisted across restarts.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	maxExchanges int
	ttl          time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

const cleanupInterval = 5 * time.Minute

// NewStore creates a session store. maxExchanges caps how many turns each
// session retains; ttl is how long an idle session survives.
func NewStore(maxExchanges int, ttl time.Duration) *Store {
	s := &Store{
		sessions:     make(map[string]*session),
		maxExchanges: maxExchanges,
		ttl:          ttl,
		done:         make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// DefaultStore creates a store keeping the last 5 turns per session with a
// one hour idle expiry.
func DefaultStore() *Store {
	return NewStore(5, time.Hour)
}

// AddExchange records a completed question-answer turn for the session.
func (s *Store) AddExchange(sessionID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess, exists := s.sessions[sessionID]
	if !exists {
		sess = &session{createdAt: now}
		s.sessions[sessionID] = sess
	}

	sess.exchanges = append(sess.exchanges, Exchange{
		Question: question,
		Answer:   answer,
		At:       now,
	})
	sess.updatedAt = now

	if len(sess.exchanges) > s.maxExchanges {
		sess.exchanges = sess.exchanges[len(sess.exchanges)-s.maxExchanges:]
	}
}

// History returns the session's exchanges in chronological order, or nil if
// the session does not exist. The returned slice is a copy.
func (s *Store) History(sessionID string) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil
	}

	exchanges := make([]Exchange, len(sess.exchanges))
	copy(exchanges, sess.exchanges)
	return exchanges
}

// RecentHistory returns the last n exchanges for context window management.
func (s *Store) RecentHistory(sessionID string, n int) []Exchange {
	history := s.History(sessionID)
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ClearSession removes a session and its history.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Close stops the background expiry loop. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.done:
			return
		}
	}
}

func (s *Store) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.updatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// FormatForPrompt renders exchanges as alternating question/answer lines for
// inclusion in an LLM prompt. Returns an empty string for empty history.
func FormatForPrompt(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, ex := range exchanges {
		sb.WriteString("User: ")
		sb.WriteString(ex.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(ex.Answer)
		sb.WriteString("\n")
	}
	return sb.String()
}
