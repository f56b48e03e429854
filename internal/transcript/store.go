package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrEmptyText       = errors.New("transcript text is empty")
)

// Observer is notified of every appended entry while the session lock is
// held, so observers see entries of one session in sequence order. An error
// rejects the entry.
type Observer interface {
	EntryAppended(e Entry) error
}

type ObserverFunc func(e Entry) error

func (f ObserverFunc) EntryAppended(e Entry) error { return f(e) }

type sessionLog struct {
	mu      sync.Mutex
	entries []Entry
}

// Store is an in-memory append-only log of call transcripts keyed by session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionLog
	observer Observer
	now      func() time.Time
}

func NewStore(observer Observer) *Store {
	return &Store{
		sessions: make(map[string]*sessionLog),
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) log(sessionID string) *sessionLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.sessions[sessionID]
	if !ok {
		l = &sessionLog{}
		s.sessions[sessionID] = l
	}
	return l
}

func (s *Store) Append(sessionID string, speaker Speaker, text string) (Entry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Entry{}, ErrSessionRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, ErrEmptyText
	}

	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		SessionID:  sessionID,
		Seq:        int64(len(l.entries)) + 1,
		Speaker:    speaker,
		Text:       text,
		OccurredAt: s.now(),
	}
	if s.observer != nil {
		if err := s.observer.EntryAppended(entry); err != nil {
			return Entry{}, err
		}
	}
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Restore seeds a session with previously persisted entries. It is a no-op
// when the session already holds entries.
func (s *Store) Restore(sessionID string, entries []Entry) {
	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) > 0 {
		return
	}
	l.entries = append([]Entry(nil), entries...)
}

func (s *Store) Entries(sessionID string) []Entry {
	s.mu.Lock()
	l, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Drop releases a finished session's entries.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}
