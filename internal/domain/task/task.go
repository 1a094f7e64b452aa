// Package task recognizes reminders in chat input and keeps them in SQLite.
package task

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// MaxDescriptionWords caps stored descriptions; reminders are read back aloud.
const MaxDescriptionWords = 3

var ErrNotFound = errors.New("task: not found")

type Task struct {
	ID          string     `json:"task_id"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
}

// IsOverdue reports whether a pending task's due time has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == StatusPending && t.DueAt != nil && t.DueAt.Before(now)
}

func limitWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
