package task

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "data", "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAddGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due := time.Now().Add(time.Hour)
	added, err := s.Add(ctx, "call the dentist about Tuesday", &due, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "call the dentist", added.Description)
	assert.Equal(t, StatusPending, added.Status)

	got, err := s.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, "call the dentist", got.Description)
	assert.Equal(t, "session-1", got.SessionID)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, due.Unix(), got.DueAt.Unix())

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Add(ctx, "   ", nil, "")
	assert.Error(t, err)
}

func TestStorePendingOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	later := now.Add(48 * time.Hour)
	sooner := now.Add(time.Hour)

	_, err := s.Add(ctx, "undated", nil, "")
	require.NoError(t, err)
	_, err = s.Add(ctx, "later", &later, "")
	require.NoError(t, err)
	_, err = s.Add(ctx, "sooner", &sooner, "")
	require.NoError(t, err)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "sooner", pending[0].Description)
	assert.Equal(t, "later", pending[1].Description)
	assert.Equal(t, "undated", pending[2].Description)
}

func TestStoreOverdueCompleteDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	late, err := s.Add(ctx, "late one", &past, "")
	require.NoError(t, err)
	_, err = s.Add(ctx, "future one", &future, "")
	require.NoError(t, err)

	overdue, err := s.Overdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].IsOverdue(now))

	done, err := s.Complete(ctx, late.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)

	overdue, err = s.Overdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Delete(ctx, late.ID))
	_, err = s.Get(ctx, late.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, late.ID), ErrNotFound)
	_, err = s.Complete(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	s, err := OpenStore(path)
	require.NoError(t, err)
	added, err := s.Add(ctx, "persist me", nil, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist me", got.Description)
}

func TestStoreCompleteByFullID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	added, err := s.Add(ctx, "water the plants", nil, "")
	require.NoError(t, err)
	_, err = s.Add(ctx, "feed the cat", nil, "")
	require.NoError(t, err)

	done, err := s.Complete(ctx, " "+added.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, added.ID, done.ID)
	assert.Equal(t, StatusDone, done.Status)

	_, err = s.Complete(ctx, added.ID+"x")
	assert.ErrorIs(t, err, ErrNotFound)
}
