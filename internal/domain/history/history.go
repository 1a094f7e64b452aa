// Package history keeps finished chat sessions in a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RoleSystem = "system"

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	ID        string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// Info describes the history file.
type Info struct {
	Path         string
	Exists       bool
	SizeBytes    int64
	LastModified time.Time
	Sessions     int
	Messages     int
}

type historyFile struct {
	Sessions []Session `json:"sessions"`
}

// Store is the session history backed by a single JSON file.
type Store struct {
	file string

	mu   sync.RWMutex
	data historyFile
}

// Open loads the history at path. A missing file starts an empty history and
// an unreadable one is replaced on the next save.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	s := &Store{file: path}
	if err := s.load(); err != nil {
		logrus.WithError(err).WithField("file", path).Warn("Could not parse history, starting a new one")
		s.data = historyFile{}
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	var data historyFile
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode history file: %w", err)
	}
	s.data = data

	logrus.WithFields(logrus.Fields{
		"sessions": len(data.Sessions),
		"file":     s.file,
	}).Debug("Loaded chat history")
	return nil
}

// save writes through a temp file so a crash never leaves half a history.
// Must be called with s.mu held.
func (s *Store) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.file), ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.file); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// AddSession appends a finished session and saves the file. Sessions with no
// messages, or only system messages, are skipped and nil is returned.
func (s *Store) AddSession(messages []Message) (*Session, error) {
	if !hasConversation(messages) {
		return nil, nil
	}

	now := time.Now()
	session := Session{
		ID:        uuid.NewString(),
		Timestamp: now,
		Messages:  make([]Message, len(messages)),
	}
	copy(session.Messages, messages)
	for i := range session.Messages {
		if session.Messages[i].Timestamp.IsZero() {
			session.Messages[i].Timestamp = now
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Sessions = append(s.data.Sessions, session)
	if err := s.save(); err != nil {
		s.data.Sessions = s.data.Sessions[:len(s.data.Sessions)-1]
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session":  session.ID,
		"messages": len(session.Messages),
	}).Info("Saved chat session")
	return &session, nil
}

func hasConversation(messages []Message) bool {
	for _, m := range messages {
		if m.Role != RoleSystem {
			return true
		}
	}
	return false
}

// Sessions returns all sessions, oldest first.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, len(s.data.Sessions))
	copy(out, s.data.Sessions)
	return out
}

func (s *Store) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.data.Sessions {
		if s.data.Sessions[i].ID == id {
			session := s.data.Sessions[i]
			return &session, true
		}
	}
	return nil, false
}

// Recent returns up to n of the latest non-system messages across sessions,
// oldest first.
func (s *Store) Recent(n int) []Message {
	if n <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for i := len(s.data.Sessions) - 1; i >= 0 && len(out) < n; i-- {
		msgs := s.data.Sessions[i].Messages
		for j := len(msgs) - 1; j >= 0 && len(out) < n; j-- {
			if msgs[j].Role != RoleSystem {
				out = append(out, msgs[j])
			}
		}
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{Path: s.file, Sessions: len(s.data.Sessions)}
	for _, session := range s.data.Sessions {
		info.Messages += len(session.Messages)
	}
	if stat, err := os.Stat(s.file); err == nil {
		info.Exists = true
		info.SizeBytes = stat.Size()
		info.LastModified = stat.ModTime()
	}
	return info
}

// Clear forgets every session and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.data = historyFile{}
	logrus.Info("Cleared chat history")
	return nil
}
