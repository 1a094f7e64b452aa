package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists tasks in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenStore opens (creating if needed) the task database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL,
		due_at INTEGER,
		session_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a new pending task. The description is trimmed to
// MaxDescriptionWords words.
func (s *Store) Add(ctx context.Context, description string, dueAt *time.Time, sessionID string) (*Task, error) {
	description = limitWords(description, MaxDescriptionWords)
	if description == "" {
		return nil, errors.New("task description is required")
	}

	t := &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      StatusPending,
		CreatedAt:   time.Now().Truncate(time.Second),
		SessionID:   sessionID,
	}
	if dueAt != nil {
		due := dueAt.Truncate(time.Second)
		t.DueAt = &due
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, description, status, created_at, due_at, session_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Description, string(t.Status), t.CreatedAt.Unix(), unixOrNull(t.DueAt), t.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to add task: %w", err)
	}
	return t, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, status, created_at, due_at, session_id
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// Pending returns pending tasks, soonest due first, undated last.
func (s *Store) Pending(ctx context.Context) ([]*Task, error) {
	return s.query(ctx, `
		SELECT id, description, status, created_at, due_at, session_id
		FROM tasks WHERE status = ?
		ORDER BY due_at IS NULL, due_at, created_at
	`, string(StatusPending))
}

// Overdue returns pending tasks whose due time is before now.
func (s *Store) Overdue(ctx context.Context, now time.Time) ([]*Task, error) {
	return s.query(ctx, `
		SELECT id, description, status, created_at, due_at, session_id
		FROM tasks WHERE status = ? AND due_at IS NOT NULL AND due_at < ?
		ORDER BY due_at
	`, string(StatusPending), now.Unix())
}

// All returns every task, pending and done.
func (s *Store) All(ctx context.Context) ([]*Task, error) {
	return s.query(ctx, `
		SELECT id, description, status, created_at, due_at, session_id
		FROM tasks ORDER BY status DESC, due_at IS NULL, due_at, created_at
	`)
}

// Complete marks a task done. id may be a unique prefix of the task id.
func (s *Store) Complete(ctx context.Context, id string) (*Task, error) {
	t, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(StatusDone), t.ID); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	t.Status = StatusDone
	return t, nil
}

// Delete removes a task. id may be a unique prefix of the task id.
func (s *Store) Delete(ctx context.Context, id string) error {
	t, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// resolve finds the single task whose id starts with prefix.
func (s *Store) resolve(ctx context.Context, prefix string) (*Task, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, ErrNotFound
	}
	if t, err := s.Get(ctx, prefix); err == nil {
		return t, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tasks, err := s.query(ctx, `
		SELECT id, description, status, created_at, due_at, session_id
		FROM tasks WHERE substr(id, 1, ?) = ? LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	switch len(tasks) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return tasks[0], nil
	default:
		return nil, fmt.Errorf("task id %q is ambiguous", prefix)
	}
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t       Task
		status  string
		created int64
		due     sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Description, &status, &created, &due, &t.SessionID); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.CreatedAt = time.Unix(created, 0)
	if due.Valid {
		d := time.Unix(due.Int64, 0)
		t.DueAt = &d
	}
	return &t, nil
}

func unixOrNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
